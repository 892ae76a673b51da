package main

import (
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"
)

// DB interface for database operations. Every mutating ledger operation is a
// single atomic step inside the adapter; callers never read-check-then-write.
type DB interface {
	Init() error
	// User operations
	UpsertUser(spotifyID, displayName, email string) error
	GetUser(spotifyID string) (*User, error)
	// Ledger operations
	GetPoints(spotifyID string) (int64, error)
	AddPoints(spotifyID string, amount int64, reason string) (int64, error)
	DeductPoints(spotifyID string, amount int64, reason string) (int64, error)
	PurchaseBadge(spotifyID, badgeID string, price int64) (*PurchaseResult, error)
	PurchasedBadgeIDs(spotifyID string) ([]string, error)
	// Badge catalog operations
	GetActiveBadge(badgeID string) (*Badge, error)
	ListActiveBadges() ([]*Badge, error)
	SeedBadges(badges []Badge) (int, error)
}

// Memory DB
type MemDB struct {
	mu     sync.Mutex
	users  map[string]*User
	badges map[string]*Badge
}

func NewMemoryDB() *MemDB {
	return &MemDB{users: map[string]*User{}, badges: map[string]*Badge{}}
}

func (m *MemDB) Init() error { return nil }

func (m *MemDB) UpsertUser(spotifyID, displayName, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if u, ok := m.users[spotifyID]; ok {
		u.DisplayName = displayName
		u.Email = email
		u.UpdatedAt = now
		return nil
	}
	m.users[spotifyID] = &User{
		SpotifyID:   spotifyID,
		DisplayName: displayName,
		Email:       email,
		Points:      0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return nil
}

func (m *MemDB) GetUser(spotifyID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[spotifyID]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.PurchasedBadges = append([]PurchasedBadge(nil), u.PurchasedBadges...)
	cp.PointTransactions = append([]PointTransaction(nil), u.PointTransactions...)
	return &cp, nil
}

func (m *MemDB) GetPoints(spotifyID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[spotifyID]; ok {
		return u.Points, nil
	}
	return 0, nil
}

func (m *MemDB) AddPoints(spotifyID string, amount int64, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[spotifyID]
	if !ok {
		return 0, ErrUserNotFound
	}
	now := time.Now().UTC()
	u.Points += amount
	u.UpdatedAt = now
	u.PointTransactions = append(u.PointTransactions, PointTransaction{Amount: amount, Reason: reason, Timestamp: now})
	return u.Points, nil
}

func (m *MemDB) DeductPoints(spotifyID string, amount int64, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[spotifyID]
	if !ok {
		return 0, ErrUserNotFound
	}
	if u.Points < amount {
		return 0, &InsufficientPointsError{Balance: u.Points, Required: amount}
	}
	now := time.Now().UTC()
	u.Points -= amount
	u.UpdatedAt = now
	u.PointTransactions = append(u.PointTransactions, PointTransaction{Amount: -amount, Reason: reason, Timestamp: now})
	return u.Points, nil
}

func (m *MemDB) PurchaseBadge(spotifyID, badgeID string, price int64) (*PurchaseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[spotifyID]
	if !ok {
		return nil, ErrUserNotFound
	}
	for _, b := range u.PurchasedBadges {
		if b.BadgeID == badgeID {
			return nil, ErrAlreadyOwned
		}
	}
	if u.Points < price {
		return nil, &InsufficientPointsError{Balance: u.Points, Required: price}
	}
	now := time.Now().UTC()
	u.Points -= price
	u.UpdatedAt = now
	u.PurchasedBadges = append(u.PurchasedBadges, PurchasedBadge{BadgeID: badgeID, Price: price, PurchasedAt: now})
	u.PointTransactions = append(u.PointTransactions, PointTransaction{Amount: -price, Reason: "purchased_badge_" + badgeID, Timestamp: now})

	ids := make([]string, 0, len(u.PurchasedBadges))
	for _, b := range u.PurchasedBadges {
		ids = append(ids, b.BadgeID)
	}
	return &PurchaseResult{BadgeID: badgeID, Price: price, NewTotal: u.Points, PurchasedBadges: ids}, nil
}

func (m *MemDB) PurchasedBadgeIDs(spotifyID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	if u, ok := m.users[spotifyID]; ok {
		for _, b := range u.PurchasedBadges {
			ids = append(ids, b.BadgeID)
		}
	}
	return ids, nil
}

func (m *MemDB) GetActiveBadge(badgeID string) (*Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.badges[badgeID]
	if !ok || !b.IsActive {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *MemDB) ListActiveBadges() ([]*Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Badge
	for _, b := range m.badges {
		if b.IsActive {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BadgeID < out[j].BadgeID })
	return out, nil
}

func (m *MemDB) SeedBadges(badges []Badge) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, b := range badges {
		if _, ok := m.badges[b.BadgeID]; ok {
			continue
		}
		cp := b
		m.badges[b.BadgeID] = &cp
		inserted++
	}
	return inserted, nil
}

// SQLite DB
type SQLiteDB struct {
	db   *sql.DB
	path string
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite handles one writer at a time; serialize on the pool
	// so concurrent ledger writes queue instead of failing with SQLITE_BUSY.
	d.SetMaxOpenConns(1)
	s := &SQLiteDB{db: d, path: path}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			spotify_id TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS badges (
			badge_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT 'all',
			price INTEGER NOT NULL DEFAULT 0 CHECK (price >= 0),
			icon TEXT NOT NULL DEFAULT '',
			rarity TEXT NOT NULL DEFAULT 'common',
			gradient TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS purchased_badges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			spotify_id TEXT NOT NULL,
			badge_id TEXT NOT NULL,
			price INTEGER NOT NULL DEFAULT 0,
			purchased_at TEXT NOT NULL,
			UNIQUE (spotify_id, badge_id)
		);`,
		`CREATE TABLE IF NOT EXISTS point_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			spotify_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_point_transactions_spotify_id ON point_transactions(spotify_id);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func sqliteNow() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseSQLiteTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func (s *SQLiteDB) UpsertUser(spotifyID, displayName, email string) error {
	now := sqliteNow()
	_, err := s.db.Exec(`INSERT INTO users(spotify_id,display_name,email,points,created_at,updated_at) VALUES(?,?,?,0,?,?)
		ON CONFLICT(spotify_id) DO UPDATE SET display_name=excluded.display_name, email=excluded.email, updated_at=excluded.updated_at`,
		spotifyID, displayName, email, now, now)
	return err
}

func (s *SQLiteDB) GetUser(spotifyID string) (*User, error) {
	row := s.db.QueryRow(`SELECT id,spotify_id,display_name,email,points,created_at,updated_at FROM users WHERE spotify_id = ?`, spotifyID)
	var u User
	var created, updated string
	if err := row.Scan(&u.ID, &u.SpotifyID, &u.DisplayName, &u.Email, &u.Points, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.CreatedAt = parseSQLiteTime(created)
	u.UpdatedAt = parseSQLiteTime(updated)

	rows, err := s.db.Query(`SELECT badge_id,price,purchased_at FROM purchased_badges WHERE spotify_id = ? ORDER BY id`, spotifyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b PurchasedBadge
		var at string
		if err := rows.Scan(&b.BadgeID, &b.Price, &at); err != nil {
			return nil, err
		}
		b.PurchasedAt = parseSQLiteTime(at)
		u.PurchasedBadges = append(u.PurchasedBadges, b)
	}

	trows, err := s.db.Query(`SELECT amount,reason,created_at FROM point_transactions WHERE spotify_id = ? ORDER BY id`, spotifyID)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var t PointTransaction
		var at string
		if err := trows.Scan(&t.Amount, &t.Reason, &at); err != nil {
			return nil, err
		}
		t.Timestamp = parseSQLiteTime(at)
		u.PointTransactions = append(u.PointTransactions, t)
	}
	return &u, nil
}

func (s *SQLiteDB) GetPoints(spotifyID string) (int64, error) {
	var points int64
	err := s.db.QueryRow(`SELECT points FROM users WHERE spotify_id = ?`, spotifyID).Scan(&points)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return points, err
}

func (s *SQLiteDB) AddPoints(spotifyID string, amount int64, reason string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := sqliteNow()
	res, err := tx.Exec(`UPDATE users SET points = points + ?, updated_at = ? WHERE spotify_id = ?`, amount, now, spotifyID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrUserNotFound
	}
	if _, err := tx.Exec(`INSERT INTO point_transactions(spotify_id,amount,reason,created_at) VALUES(?,?,?,?)`, spotifyID, amount, reason, now); err != nil {
		return 0, err
	}
	var total int64
	if err := tx.QueryRow(`SELECT points FROM users WHERE spotify_id = ?`, spotifyID).Scan(&total); err != nil {
		return 0, err
	}
	return total, tx.Commit()
}

func (s *SQLiteDB) DeductPoints(spotifyID string, amount int64, reason string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := sqliteNow()
	// balance check and decrement in one statement; no read-then-write
	res, err := tx.Exec(`UPDATE users SET points = points - ?, updated_at = ? WHERE spotify_id = ? AND points >= ?`, amount, now, spotifyID, amount)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var balance int64
		err := tx.QueryRow(`SELECT points FROM users WHERE spotify_id = ?`, spotifyID).Scan(&balance)
		if err == sql.ErrNoRows {
			return 0, ErrUserNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, &InsufficientPointsError{Balance: balance, Required: amount}
	}
	if _, err := tx.Exec(`INSERT INTO point_transactions(spotify_id,amount,reason,created_at) VALUES(?,?,?,?)`, spotifyID, -amount, reason, now); err != nil {
		return 0, err
	}
	var total int64
	if err := tx.QueryRow(`SELECT points FROM users WHERE spotify_id = ?`, spotifyID).Scan(&total); err != nil {
		return 0, err
	}
	return total, tx.Commit()
}

func (s *SQLiteDB) PurchaseBadge(spotifyID, badgeID string, price int64) (*PurchaseResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := sqliteNow()
	// condition: user exists, has enough points, and does not own the badge
	res, err := tx.Exec(`UPDATE users SET points = points - ?, updated_at = ?
		WHERE spotify_id = ? AND points >= ?
		AND NOT EXISTS (SELECT 1 FROM purchased_badges WHERE spotify_id = ? AND badge_id = ?)`,
		price, now, spotifyID, price, spotifyID, badgeID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.diagnosePurchaseFailure(tx, spotifyID, badgeID, price)
	}

	if _, err := tx.Exec(`INSERT INTO purchased_badges(spotify_id,badge_id,price,purchased_at) VALUES(?,?,?,?)`, spotifyID, badgeID, price, now); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrAlreadyOwned
		}
		return nil, err
	}
	if _, err := tx.Exec(`INSERT INTO point_transactions(spotify_id,amount,reason,created_at) VALUES(?,?,?,?)`, spotifyID, -price, "purchased_badge_"+badgeID, now); err != nil {
		return nil, err
	}

	var total int64
	if err := tx.QueryRow(`SELECT points FROM users WHERE spotify_id = ?`, spotifyID).Scan(&total); err != nil {
		return nil, err
	}
	ids, err := purchasedIDsTx(tx, spotifyID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &PurchaseResult{BadgeID: badgeID, Price: price, NewTotal: total, PurchasedBadges: ids}, nil
}

// diagnosePurchaseFailure re-reads the user purely to pick an accurate error;
// the conditional update above already decided the purchase did not happen.
func (s *SQLiteDB) diagnosePurchaseFailure(tx *sql.Tx, spotifyID, badgeID string, price int64) error {
	var balance int64
	err := tx.QueryRow(`SELECT points FROM users WHERE spotify_id = ?`, spotifyID).Scan(&balance)
	if err == sql.ErrNoRows {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	var owned int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM purchased_badges WHERE spotify_id = ? AND badge_id = ?`, spotifyID, badgeID).Scan(&owned); err != nil {
		return err
	}
	if owned > 0 {
		return ErrAlreadyOwned
	}
	if balance < price {
		return &InsufficientPointsError{Balance: balance, Required: price}
	}
	return ErrPurchaseFailed
}

func purchasedIDsTx(tx *sql.Tx, spotifyID string) ([]string, error) {
	rows, err := tx.Query(`SELECT badge_id FROM purchased_badges WHERE spotify_id = ? ORDER BY id`, spotifyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteDB) PurchasedBadgeIDs(spotifyID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT badge_id FROM purchased_badges WHERE spotify_id = ? ORDER BY id`, spotifyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteDB) GetActiveBadge(badgeID string) (*Badge, error) {
	row := s.db.QueryRow(`SELECT badge_id,name,description,category,price,icon,rarity,gradient,is_active FROM badges WHERE badge_id = ? AND is_active = 1`, badgeID)
	var b Badge
	var active int
	if err := row.Scan(&b.BadgeID, &b.Name, &b.Description, &b.Category, &b.Price, &b.Icon, &b.Rarity, &b.Gradient, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	b.IsActive = active != 0
	return &b, nil
}

func (s *SQLiteDB) ListActiveBadges() ([]*Badge, error) {
	rows, err := s.db.Query(`SELECT badge_id,name,description,category,price,icon,rarity,gradient,is_active FROM badges WHERE is_active = 1 ORDER BY badge_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Badge
	for rows.Next() {
		var b Badge
		var active int
		if err := rows.Scan(&b.BadgeID, &b.Name, &b.Description, &b.Category, &b.Price, &b.Icon, &b.Rarity, &b.Gradient, &active); err != nil {
			return nil, err
		}
		b.IsActive = active != 0
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) SeedBadges(badges []Badge) (int, error) {
	inserted := 0
	now := sqliteNow()
	for _, b := range badges {
		active := 0
		if b.IsActive {
			active = 1
		}
		res, err := s.db.Exec(`INSERT INTO badges(badge_id,name,description,category,price,icon,rarity,gradient,is_active,created_at,updated_at)
			VALUES(?,?,?,?,?,?,?,?,?,?,?) ON CONFLICT(badge_id) DO NOTHING`,
			b.BadgeID, b.Name, b.Description, b.Category, b.Price, b.Icon, b.Rarity, b.Gradient, active, now, now)
		if err != nil {
			return inserted, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// lifecycle helpers
func (m *MemDB) close() error { return nil }
func (m *MemDB) ping() bool   { return true }

func (s *SQLiteDB) close() error { return s.db.Close() }
func (s *SQLiteDB) ping() bool   { return s.db.Ping() == nil }
