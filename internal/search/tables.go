package search

import "github.com/Aman-CERP/gamescout/internal/store"

// defaultRules builds a fresh, uncompiled copy of the built-in tables.
func defaultRules() *Rules {
	return &Rules{
		Franchises: []Franchise{
			{Key: "pokemon", Name: "Pokémon", Tier: 1, Roots: []string{"pokemon"},
				SupplementalTerms: []string{"pocket monsters", "pokemon mystery dungeon"}},
			{Key: "mario", Name: "Super Mario", Tier: 1, Roots: []string{"super mario", "mario"},
				SupplementalTerms: []string{"mario kart", "mario party", "paper mario"}},
			{Key: "zelda", Name: "The Legend of Zelda", Tier: 1, Roots: []string{"the legend of zelda", "zelda"},
				SupplementalTerms: []string{"legend of zelda"}},
			{Key: "final-fantasy", Name: "Final Fantasy", Tier: 1, Roots: []string{"final fantasy"}},
			{Key: "call-of-duty", Name: "Call of Duty", Tier: 1, Roots: []string{"call of duty"}},
			{Key: "gta", Name: "Grand Theft Auto", Tier: 1, Roots: []string{"grand theft auto"}},
			{Key: "minecraft", Name: "Minecraft", Tier: 1, Roots: []string{"minecraft"},
				ExemptCategories: []store.Category{store.CategoryMod}},
			{Key: "elder-scrolls", Name: "The Elder Scrolls", Tier: 1, Roots: []string{"the elder scrolls", "elder scrolls", "skyrim"},
				ExemptCategories: []store.Category{store.CategoryMod}},
			{Key: "halo", Name: "Halo", Tier: 2, Roots: []string{"halo"}},
			{Key: "resident-evil", Name: "Resident Evil", Tier: 2, Roots: []string{"resident evil", "biohazard"}},
			{Key: "metal-gear", Name: "Metal Gear", Tier: 2, Roots: []string{"metal gear"}},
			{Key: "sonic", Name: "Sonic the Hedgehog", Tier: 2, Roots: []string{"sonic the hedgehog", "sonic"}},
			{Key: "fallout", Name: "Fallout", Tier: 2, Roots: []string{"fallout"},
				ExemptCategories: []store.Category{store.CategoryMod}},
			{Key: "doom", Name: "Doom", Tier: 2, Roots: []string{"doom"},
				ExemptCategories: []store.Category{store.CategoryMod}},
			{Key: "half-life", Name: "Half-Life", Tier: 2, Roots: []string{"half-life"},
				ExemptCategories: []store.Category{store.CategoryMod}},
			{Key: "street-fighter", Name: "Street Fighter", Tier: 2, Roots: []string{"street fighter"}},
			{Key: "assassins-creed", Name: "Assassin's Creed", Tier: 2, Roots: []string{"assassin's creed", "assassins creed"}},
			{Key: "dark-souls", Name: "Dark Souls", Tier: 2, Roots: []string{"dark souls"}},
			{Key: "persona", Name: "Persona", Tier: 2, Roots: []string{"persona"}},
			{Key: "dragon-quest", Name: "Dragon Quest", Tier: 2, Roots: []string{"dragon quest", "dragon warrior"}},
			{Key: "monster-hunter", Name: "Monster Hunter", Tier: 2, Roots: []string{"monster hunter"}},
			{Key: "kirby", Name: "Kirby", Tier: 3, Roots: []string{"kirby"}},
			{Key: "metroid", Name: "Metroid", Tier: 3, Roots: []string{"metroid"}},
			{Key: "fire-emblem", Name: "Fire Emblem", Tier: 3, Roots: []string{"fire emblem"}},
			{Key: "castlevania", Name: "Castlevania", Tier: 3, Roots: []string{"castlevania"}},
			{Key: "mega-man", Name: "Mega Man", Tier: 3, Roots: []string{"mega man", "megaman", "rockman"}},
			{Key: "the-witcher", Name: "The Witcher", Tier: 3, Roots: []string{"the witcher", "witcher"}},
		},
		Abbreviations: map[string]string{
			"botw": "breath of the wild",
			"cod":  "call of duty",
			"dq":   "dragon quest",
			"ff":   "final fantasy",
			"gta":  "grand theft auto",
			"hl":   "half-life",
			"kh":   "kingdom hearts",
			"loz":  "the legend of zelda",
			"mgs":  "metal gear solid",
			"mh":   "monster hunter",
			"rdr":  "red dead redemption",
			"smb":  "super mario bros",
			"tes":  "the elder scrolls",
			"totk": "tears of the kingdom",
		},
		AccentForms: map[string]string{
			"okami":    "ōkami",
			"pokemon":  "pokémon",
			"ragnarok": "ragnarök",
		},
		Developers: []string{
			"nintendo", "capcom", "square enix", "fromsoftware", "from software",
			"bethesda", "valve", "ubisoft", "electronic arts", "sega", "konami",
			"bandai namco", "rockstar games", "blizzard", "naughty dog",
			"cd projekt red", "bioware", "atlus", "game freak", "insomniac games",
			"obsidian", "id software", "treyarch", "infinity ward", "team cherry",
			"supergiant games", "hal laboratory", "intelligent systems", "platinumgames",
		},
		GenreKeywords: []string{
			"rpg", "jrpg", "role playing", "platformer", "shooter", "fps",
			"roguelike", "roguelite", "metroidvania", "puzzle", "racing",
			"strategy", "rts", "turn based", "simulation", "survival", "horror",
			"sandbox", "open world", "fighting", "adventure", "action", "mmo",
			"mmorpg", "moba", "battle royale", "stealth", "rhythm", "visual novel",
			"sports", "city builder", "tower defense", "soulslike", "hack and slash",
			"point and click", "indie", "co op", "coop", "multiplayer", "party",
		},
		GenericWords: []string{
			"game", "games", "best", "top", "good", "great", "new", "old",
			"classic", "popular", "retro", "cozy", "hard", "short", "long",
			"story", "free", "the", "a", "an", "of", "for", "and", "with", "to",
			"in", "on", "like", "from", "by", "released", "made",
		},
		ProtectedCategories: []store.Category{
			store.CategoryBundle, store.CategoryPort, store.CategoryFork,
			store.CategoryPack, store.CategoryUpdate, store.CategoryMod,
		},
		PrimaryCategories: []store.Category{
			store.CategoryMainGame, store.CategoryStandaloneExpansion,
			store.CategoryRemake, store.CategoryRemaster, store.CategoryExpandedGame,
		},
		FanContent: FanContentRules{
			NamePatterns: []string{
				`\bfan[\s-]?(made|game|remake|edition)\b`,
				`\bunofficial\b`,
				`\brom[\s-]?hack\b`,
				`\bdemake\b`,
				`\bfangame\b`,
			},
			PublisherTokens: []string{"homebrew", "fan project", "fangame", "unofficial", "romhack"},
		},
		Intents: map[string]IntentProfile{
			SpecificGame.String(): {
				EarlyTerminationCount: 100, QualityThreshold: 0.30, FinalResultLimit: 20, RelevanceFloor: 0.35,
			},
			FranchiseBrowse.String(): {
				EarlyTerminationCount: 250, QualityThreshold: 0.35, FinalResultLimit: 60, RelevanceFloor: 0.20,
			},
			GenreDiscovery.String(): {
				EarlyTerminationCount: 200, QualityThreshold: 0.45, FinalResultLimit: 40, RelevanceFloor: 0,
			},
			YearSearch.String(): {
				EarlyTerminationCount: 200, QualityThreshold: 0.40, FinalResultLimit: 40, RelevanceFloor: 0.10,
			},
			DeveloperSearch.String(): {
				EarlyTerminationCount: 200, QualityThreshold: 0.35, FinalResultLimit: 50, RelevanceFloor: 0.20,
			},
		},
		Weights: Weights{Relevance: 0.35, Popularity: 0.25, Quality: 0.20, Engagement: 0.20},
		Scoring: ScoringConstants{
			PriorMean:           70,
			PriorWeight:         50,
			FollowerReference:   1_000_000,
			EngagementReference: 10_000,
			TierBonus:           []float64{1.0, 0.7, 0.4},
		},
	}
}
