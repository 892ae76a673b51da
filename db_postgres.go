package main

import (
	"database/sql"

	"github.com/lib/pq"
)

type PostgresDB struct {
	db  *sql.DB
	dsn string
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresDB) Init() error {
	// rely on migrations to create tables; just verify connectivity
	return p.db.Ping()
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func (p *PostgresDB) UpsertUser(spotifyID, displayName, email string) error {
	_, err := p.db.Exec(`INSERT INTO users(spotify_id,display_name,email,points,created_at,updated_at) VALUES($1,$2,$3,0,now(),now())
		ON CONFLICT (spotify_id) DO UPDATE SET display_name=EXCLUDED.display_name, email=EXCLUDED.email, updated_at=EXCLUDED.updated_at`,
		spotifyID, displayName, email)
	return err
}

func (p *PostgresDB) GetUser(spotifyID string) (*User, error) {
	row := p.db.QueryRow(`SELECT id,spotify_id,display_name,email,points,created_at,updated_at FROM users WHERE spotify_id = $1`, spotifyID)
	var u User
	if err := row.Scan(&u.ID, &u.SpotifyID, &u.DisplayName, &u.Email, &u.Points, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := p.db.Query(`SELECT badge_id,price,purchased_at FROM purchased_badges WHERE spotify_id = $1 ORDER BY id`, spotifyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b PurchasedBadge
		if err := rows.Scan(&b.BadgeID, &b.Price, &b.PurchasedAt); err != nil {
			return nil, err
		}
		u.PurchasedBadges = append(u.PurchasedBadges, b)
	}

	trows, err := p.db.Query(`SELECT amount,reason,created_at FROM point_transactions WHERE spotify_id = $1 ORDER BY id`, spotifyID)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var t PointTransaction
		if err := trows.Scan(&t.Amount, &t.Reason, &t.Timestamp); err != nil {
			return nil, err
		}
		u.PointTransactions = append(u.PointTransactions, t)
	}
	return &u, nil
}

func (p *PostgresDB) GetPoints(spotifyID string) (int64, error) {
	var points int64
	err := p.db.QueryRow(`SELECT points FROM users WHERE spotify_id = $1`, spotifyID).Scan(&points)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return points, err
}

func (p *PostgresDB) AddPoints(spotifyID string, amount int64, reason string) (int64, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	err = tx.QueryRow(`UPDATE users SET points = points + $1, updated_at = now() WHERE spotify_id = $2 RETURNING points`, amount, spotifyID).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`INSERT INTO point_transactions(spotify_id,amount,reason,created_at) VALUES($1,$2,$3,now())`, spotifyID, amount, reason); err != nil {
		return 0, err
	}
	return total, tx.Commit()
}

func (p *PostgresDB) DeductPoints(spotifyID string, amount int64, reason string) (int64, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	// balance check and decrement in one statement; the row lock serializes
	// concurrent deductions and the predicate is re-checked after it
	err = tx.QueryRow(`UPDATE users SET points = points - $1, updated_at = now() WHERE spotify_id = $2 AND points >= $1 RETURNING points`, amount, spotifyID).Scan(&total)
	if err == sql.ErrNoRows {
		var balance int64
		err := tx.QueryRow(`SELECT points FROM users WHERE spotify_id = $1`, spotifyID).Scan(&balance)
		if err == sql.ErrNoRows {
			return 0, ErrUserNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, &InsufficientPointsError{Balance: balance, Required: amount}
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`INSERT INTO point_transactions(spotify_id,amount,reason,created_at) VALUES($1,$2,$3,now())`, spotifyID, -amount, reason); err != nil {
		return 0, err
	}
	return total, tx.Commit()
}

func (p *PostgresDB) PurchaseBadge(spotifyID, badgeID string, price int64) (*PurchaseResult, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var total int64
	err = tx.QueryRow(`UPDATE users SET points = points - $1, updated_at = now()
		WHERE spotify_id = $2 AND points >= $1
		AND NOT EXISTS (SELECT 1 FROM purchased_badges WHERE spotify_id = $2 AND badge_id = $3)
		RETURNING points`, price, spotifyID, badgeID).Scan(&total)
	if err == sql.ErrNoRows {
		return nil, p.diagnosePurchaseFailure(tx, spotifyID, badgeID, price)
	}
	if err != nil {
		return nil, err
	}

	// UNIQUE(spotify_id,badge_id) is the backstop for two purchases racing
	// past the NOT EXISTS check
	if _, err := tx.Exec(`INSERT INTO purchased_badges(spotify_id,badge_id,price,purchased_at) VALUES($1,$2,$3,now())`, spotifyID, badgeID, price); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyOwned
		}
		return nil, err
	}
	if _, err := tx.Exec(`INSERT INTO point_transactions(spotify_id,amount,reason,created_at) VALUES($1,$2,$3,now())`, spotifyID, -price, "purchased_badge_"+badgeID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(`SELECT badge_id FROM purchased_badges WHERE spotify_id = $1 ORDER BY id`, spotifyID)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &PurchaseResult{BadgeID: badgeID, Price: price, NewTotal: total, PurchasedBadges: ids}, nil
}

// diagnosePurchaseFailure re-reads the user to pick an accurate error message;
// the conditional update already decided the purchase did not happen.
func (p *PostgresDB) diagnosePurchaseFailure(tx *sql.Tx, spotifyID, badgeID string, price int64) error {
	var balance int64
	err := tx.QueryRow(`SELECT points FROM users WHERE spotify_id = $1`, spotifyID).Scan(&balance)
	if err == sql.ErrNoRows {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	var owned int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM purchased_badges WHERE spotify_id = $1 AND badge_id = $2`, spotifyID, badgeID).Scan(&owned); err != nil {
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

func (p *PostgresDB) PurchasedBadgeIDs(spotifyID string) ([]string, error) {
	rows, err := p.db.Query(`SELECT badge_id FROM purchased_badges WHERE spotify_id = $1 ORDER BY id`, spotifyID)
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

func (p *PostgresDB) GetActiveBadge(badgeID string) (*Badge, error) {
	row := p.db.QueryRow(`SELECT badge_id,name,description,category,price,icon,rarity,gradient,is_active FROM badges WHERE badge_id = $1 AND is_active = true`, badgeID)
	var b Badge
	if err := row.Scan(&b.BadgeID, &b.Name, &b.Description, &b.Category, &b.Price, &b.Icon, &b.Rarity, &b.Gradient, &b.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (p *PostgresDB) ListActiveBadges() ([]*Badge, error) {
	rows, err := p.db.Query(`SELECT badge_id,name,description,category,price,icon,rarity,gradient,is_active FROM badges WHERE is_active = true ORDER BY badge_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Badge
	for rows.Next() {
		var b Badge
		if err := rows.Scan(&b.BadgeID, &b.Name, &b.Description, &b.Category, &b.Price, &b.Icon, &b.Rarity, &b.Gradient, &b.IsActive); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (p *PostgresDB) SeedBadges(badges []Badge) (int, error) {
	inserted := 0
	for _, b := range badges {
		res, err := p.db.Exec(`INSERT INTO badges(badge_id,name,description,category,price,icon,rarity,gradient,is_active,created_at,updated_at)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now()) ON CONFLICT (badge_id) DO NOTHING`,
			b.BadgeID, b.Name, b.Description, b.Category, b.Price, b.Icon, b.Rarity, b.Gradient, b.IsActive)
		if err != nil {
			return inserted, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (p *PostgresDB) close() error { return p.db.Close() }
func (p *PostgresDB) ping() bool   { return p.db.Ping() == nil }
