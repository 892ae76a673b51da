package main

// catalogBadges is the static badge catalog. Seeding inserts only ids that are
// missing from the store, so admin edits to existing rows survive restarts.
var catalogBadges = []Badge{
	// Listener collection
	{BadgeID: "neon-listener", Name: "Neon Listener", Description: "A fresh pulse in a world of sound.", Category: "listener", Price: 0, Icon: "🎧", Rarity: "common", Gradient: "linear-gradient(135deg, #6b6b6b, #8a8a8a)", IsActive: true},
	{BadgeID: "echo-walker", Name: "Echo Walker", Description: "Moving through life one rhythm at a time.", Category: "listener", Price: 50, Icon: "📅", Rarity: "common", Gradient: "linear-gradient(135deg, #4a90e2, #357abd)", IsActive: true},
	{BadgeID: "midnight-aura", Name: "Midnight Aura", Description: "Where the bass glows under city lights.", Category: "listener", Price: 75, Icon: "🦉", Rarity: "uncommon", Gradient: "linear-gradient(135deg, #6f4e37, #4a3729)", IsActive: true},
	{BadgeID: "golden-frequency", Name: "Golden Frequency", Description: "Bright tones wrapped in sunrise energy.", Category: "listener", Price: 75, Icon: "🐦", Rarity: "uncommon", Gradient: "linear-gradient(135deg, #f7b731, #f39c12)", IsActive: true},

	// Genre collection
	{BadgeID: "spectrum-rider", Name: "Spectrum Rider", Description: "Flowing across waves of every color and sound.", Category: "genre", Price: 100, Icon: "🌍", Rarity: "common", Gradient: "linear-gradient(135deg, #27ae60, #2ecc71)", IsActive: true},
	{BadgeID: "harmony-architect", Name: "Harmony Architect", Description: "Built from layers of rhythm and resonance.", Category: "genre", Price: 200, Icon: "🎪", Rarity: "rare", Gradient: "linear-gradient(135deg, #8e44ad, #9b59b6)", IsActive: true},
	{BadgeID: "prism-legend", Name: "Prism Legend", Description: "A radiant blend of every sonic dimension.", Category: "genre", Price: 500, Icon: "🏆", Rarity: "epic", Gradient: "linear-gradient(135deg, #f1c40f, #f39c12)", IsActive: true},

	// Artist collection
	{BadgeID: "starlight-echo", Name: "Starlight Echo", Description: "Where spotlight and sound collide.", Category: "artist", Price: 150, Icon: "⭐", Rarity: "rare", Gradient: "linear-gradient(135deg, #e67e22, #d35400)", IsActive: true},
	{BadgeID: "vinyl-vault", Name: "Vinyl Vault", Description: "Timeless tones stored in endless rotation.", Category: "artist", Price: 125, Icon: "📚", Rarity: "uncommon", Gradient: "linear-gradient(135deg, #16a085, #1abc9c)", IsActive: true},
	{BadgeID: "aurora-seeker", Name: "Aurora Seeker", Description: "Chasing rare waves across the horizon.", Category: "artist", Price: 150, Icon: "🔍", Rarity: "rare", Gradient: "linear-gradient(135deg, #2980b9, #3498db)", IsActive: true},

	// Playlist collection
	{BadgeID: "mood-alchemist", Name: "Mood Alchemist", Description: "Turning emotion into atmosphere.", Category: "playlist", Price: 25, Icon: "📝", Rarity: "common", Gradient: "linear-gradient(135deg, #95a5a6, #7f8c8d)", IsActive: true},
	{BadgeID: "sonic-architect", Name: "Sonic Architect", Description: "Designed with precision and pulse.", Category: "playlist", Price: 150, Icon: "🎵", Rarity: "uncommon", Gradient: "linear-gradient(135deg, #e74c3c, #c0392b)", IsActive: true},
	{BadgeID: "wave-monarch", Name: "Wave Monarch", Description: "Crowned in rhythm and resonance.", Category: "playlist", Price: 300, Icon: "📈", Rarity: "epic", Gradient: "linear-gradient(135deg, #d35400, #e67e22)", IsActive: true},

	// Time collection
	{BadgeID: "pulse-keeper", Name: "Pulse Keeper", Description: "Steady beats. Endless motion.", Category: "time", Price: 100, Icon: "⏰", Rarity: "common", Gradient: "linear-gradient(135deg, #34495e, #2c3e50)", IsActive: true},
	{BadgeID: "eternal-frequency", Name: "Eternal Frequency", Description: "Sound without limits.", Category: "time", Price: 400, Icon: "⌛", Rarity: "rare", Gradient: "linear-gradient(135deg, #f39c12, #e67e22)", IsActive: true},
	{BadgeID: "timeless-resonance", Name: "Timeless Resonance", Description: "Echoing beyond eras.", Category: "time", Price: 250, Icon: "🎂", Rarity: "rare", Gradient: "linear-gradient(135deg, #9b59b6, #8e44ad)", IsActive: true},

	// Special collection
	{BadgeID: "prismatic-pulse", Name: "Prismatic Pulse", Description: "A celebration of color and sound.", Category: "special", Price: 50, Icon: "🎁", Rarity: "limited", Gradient: "linear-gradient(135deg, #1db954, #1ed760)", IsActive: true},
	{BadgeID: "velvet-frequency", Name: "Velvet Frequency", Description: "Smooth waves wrapped in glow.", Category: "special", Price: 50, Icon: "🎄", Rarity: "limited", Gradient: "linear-gradient(135deg, #ff6b6b, #ff8e8e)", IsActive: true},
	{BadgeID: "first-wave", Name: "First Wave", Description: "Where the sound era began.", Category: "special", Price: 500, Icon: "🚀", Rarity: "legendary", Gradient: "linear-gradient(135deg, #f1c40f, #e67e22, #e74c3c)", IsActive: true},
	{BadgeID: "stage-phantom", Name: "Stage Phantom", Description: "Living between lights and echoes.", Category: "special", Price: 200, Icon: "🎫", Rarity: "epic", Gradient: "linear-gradient(135deg, #e84393, #c2185b)", IsActive: true},
}
