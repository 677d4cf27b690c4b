//go:build ignore

// Package main compares two `go test -bench` outputs and fails on regressions.
// Usage:
//
//	go test -bench . -benchmem ./internal/search > current.txt
//	go run scripts/bench-compare.go current.txt baseline.txt
//
// A benchmark regresses when ns/op or allocs/op grows by more than the
// threshold. Repeated runs of one benchmark (-count N) are averaged.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.20

var (
	asJSON    = flag.Bool("json", false, "Output the comparison as JSON")
	threshold = flag.Float64("threshold", defaultThreshold, "Allowed slowdown as a fraction (0.2 = 20%)")
	noFail    = flag.Bool("no-fail", false, "Always exit 0")
)

// BenchmarkName-8   12345   987.6 ns/op   1024 B/op   12 allocs/op
var benchLine = regexp.MustCompile(`^(Benchmark\S+?)(?:-\d+)?\s+\d+\s+([\d.]+) ns/op(?:\s+\d+ B/op)?(?:\s+(\d+) allocs/op)?`)

type measurement struct {
	NsPerOp     float64 `json:"ns_per_op"`
	AllocsPerOp float64 `json:"allocs_per_op"`
	runs        int
}

type delta struct {
	Name      string       `json:"name"`
	Current   *measurement `json:"current,omitempty"`
	Baseline  *measurement `json:"baseline,omitempty"`
	TimePct   float64      `json:"time_pct"`
	AllocsPct float64      `json:"allocs_pct"`
	Status    string       `json:"status"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <current.txt> <baseline.txt>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	current, err := parseFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", flag.Arg(0), err)
		os.Exit(2)
	}
	baseline, err := parseFile(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", flag.Arg(1), err)
		os.Exit(2)
	}

	deltas := compare(current, baseline, *threshold)
	regressed := 0
	for _, d := range deltas {
		if d.Status == "regressed" {
			regressed++
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"threshold": *threshold, "regressions": regressed, "benchmarks": deltas})
	} else {
		printTable(deltas, regressed)
	}

	if regressed > 0 && !*noFail {
		os.Exit(1)
	}
}

func parseFile(path string) (map[string]*measurement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]*measurement)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := benchLine.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		ns, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		var allocs float64
		if m[3] != "" {
			allocs, _ = strconv.ParseFloat(m[3], 64)
		}
		acc, ok := out[m[1]]
		if !ok {
			acc = &measurement{}
			out[m[1]] = acc
		}
		// Running mean over -count repetitions.
		acc.runs++
		acc.NsPerOp += (ns - acc.NsPerOp) / float64(acc.runs)
		acc.AllocsPerOp += (allocs - acc.AllocsPerOp) / float64(acc.runs)
	}
	return out, scanner.Err()
}

func compare(current, baseline map[string]*measurement, limit float64) []delta {
	names := make(map[string]struct{}, len(current)+len(baseline))
	for n := range current {
		names[n] = struct{}{}
	}
	for n := range baseline {
		names[n] = struct{}{}
	}

	out := make([]delta, 0, len(names))
	for n := range names {
		d := delta{Name: n, Current: current[n], Baseline: baseline[n]}
		switch {
		case d.Baseline == nil:
			d.Status = "new"
		case d.Current == nil:
			d.Status = "missing"
		default:
			d.TimePct = pctChange(d.Current.NsPerOp, d.Baseline.NsPerOp)
			d.AllocsPct = pctChange(d.Current.AllocsPerOp, d.Baseline.AllocsPerOp)
			switch {
			case d.TimePct > limit*100 || d.AllocsPct > limit*100:
				d.Status = "regressed"
			case d.TimePct < -limit*100:
				d.Status = "improved"
			default:
				d.Status = "ok"
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func pctChange(cur, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (cur - base) / base * 100
}

func printTable(deltas []delta, regressed int) {
	fmt.Printf("%-44s %14s %14s %9s %9s  %s\n", "BENCHMARK", "CURRENT", "BASELINE", "TIME", "ALLOCS", "STATUS")
	for _, d := range deltas {
		cur, base := "-", "-"
		if d.Current != nil {
			cur = fmt.Sprintf("%.0f ns", d.Current.NsPerOp)
		}
		if d.Baseline != nil {
			base = fmt.Sprintf("%.0f ns", d.Baseline.NsPerOp)
		}
		fmt.Printf("%-44s %14s %14s %+8.1f%% %+8.1f%%  %s\n",
			shorten(d.Name, 44), cur, base, d.TimePct, d.AllocsPct, d.Status)
	}
	fmt.Println()
	if regressed > 0 {
		fmt.Printf("FAIL: %d benchmark(s) regressed by more than %.0f%%\n", regressed, *threshold*100)
		return
	}
	fmt.Println("PASS: no regressions")
}

func shorten(name string, n int) string {
	if len(name) <= n {
		return name
	}
	return name[:n-3] + "..."
}
