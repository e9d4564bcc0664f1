// Package report summarizes a user's collection and scan history.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"cardscope/models"
)

var ErrUserNotFound = errors.New("user not found")

// GameTotal aggregates the cards of one game.
type GameTotal struct {
	Game  string `json:"game"`
	Cards int    `json:"cards"`
	// Priced counts the cards whose price could be parsed.
	Priced int     `json:"priced"`
	Value  float64 `json:"value"`
}

// MethodStat aggregates scans by the tier that resolved them.
type MethodStat struct {
	Method        string  `json:"method"`
	Scans         int64   `json:"scans"`
	AvgConfidence float64 `json:"avg_confidence"`
}

type Collection struct {
	Username    string       `json:"username"`
	Games       []GameTotal  `json:"games"`
	TotalCards  int          `json:"total_cards"`
	TotalValue  float64      `json:"total_value"`
	Methods     []MethodStat `json:"methods"`
	FailedScans int64        `json:"failed_scans"`
}

// BuildCollection loads the collection of username. Prices are stored as
// free-form strings, so anything that does not parse as a number is counted
// as a card but not as value.
func BuildCollection(ctx context.Context, db *gorm.DB, username string) (*Collection, error) {
	gdb := db.WithContext(ctx)
	var user models.User
	if err := gdb.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return nil, err
	}

	var cards []models.Card
	if err := gdb.Where("owner_id = ?", user.ID).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	out := &Collection{Username: user.Username}
	byGame := map[string]*GameTotal{}
	for _, c := range cards {
		g := byGame[c.Game]
		if g == nil {
			g = &GameTotal{Game: c.Game}
			byGame[c.Game] = g
		}
		g.Cards++
		out.TotalCards++
		if c.Price == nil {
			continue
		}
		if v, ok := ParsePrice(*c.Price); ok {
			g.Priced++
			g.Value += v
			out.TotalValue += v
		}
	}
	for _, g := range byGame {
		out.Games = append(out.Games, *g)
	}
	sort.Slice(out.Games, func(i, j int) bool { return out.Games[i].Game < out.Games[j].Game })

	if err := gdb.Model(&models.ScanMetadata{}).
		Select("scan_method AS method, COUNT(*) AS scans, AVG(confidence) AS avg_confidence").
		Where("owner_id = ? AND failed = ?", user.ID, false).
		Group("scan_method").
		Order("scan_method").
		Scan(&out.Methods).Error; err != nil {
		return nil, fmt.Errorf("scan stats: %w", err)
	}
	if err := gdb.Model(&models.ScanMetadata{}).
		Where("owner_id = ? AND failed = ?", user.ID, true).
		Count(&out.FailedScans).Error; err != nil {
		return nil, fmt.Errorf("failed scans: %w", err)
	}
	return out, nil
}

// ParsePrice reads prices such as "12.50", "$3", "1,299.00".
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
