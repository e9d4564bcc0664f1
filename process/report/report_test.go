package report

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"cardscope/models"
	"cardscope/pkg/catalog"
	"cardscope/pkg/database"
	"cardscope/pkg/logging"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.50", 12.5, true},
		{" $3 ", 3, true},
		{"1,299.00", 1299, true},
		{"0.00", 0, true},
		{"n/a", 0, false},
		{"", 0, false},
		{"-1", 0, false},
	}
	for _, c := range cases {
		got, ok := ParsePrice(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParsePrice(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestBuildCollection(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "report.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db, logging.NewNop()); err != nil {
		t.Fatal(err)
	}
	user := models.User{Username: "ash", HashedPassword: []byte("x")}
	other := models.User{Username: "gary", HashedPassword: []byte("x")}
	db.Create(&user)
	db.Create(&other)

	cards := []models.Card{
		{OwnerID: user.ID, Name: "Pikachu", Game: catalog.GamePokemon, Price: catalog.Optional("0.24"), Confidence: 1},
		{OwnerID: user.ID, Name: "Charizard", Game: catalog.GamePokemon, Price: catalog.Optional("$100"), Confidence: 1},
		{OwnerID: user.ID, Name: "Dark Magician", Game: catalog.GameYugioh, Price: catalog.Optional("n/a"), Confidence: 0.9},
		{OwnerID: user.ID, Name: "Kuriboh", Game: catalog.GameYugioh, Confidence: 0.6},
		{OwnerID: other.ID, Name: "Eevee", Game: catalog.GamePokemon, Price: catalog.Optional("5"), Confidence: 1},
	}
	if err := db.Create(&cards).Error; err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	metas := []models.ScanMetadata{
		{OwnerID: user.ID, ScanMethod: "code", Confidence: 1, Timestamp: now},
		{OwnerID: user.ID, ScanMethod: "code", Confidence: 0.9, Timestamp: now},
		{OwnerID: user.ID, ScanMethod: "visual", Confidence: 0.6, Timestamp: now},
		{OwnerID: user.ID, ScanMethod: "manual", Failed: true, FailedReason: "decode", Timestamp: now},
		{OwnerID: other.ID, ScanMethod: "code", Confidence: 1, Timestamp: now},
	}
	if err := db.Create(&metas).Error; err != nil {
		t.Fatal(err)
	}

	rep, err := BuildCollection(context.Background(), db, "ash")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.TotalCards != 4 || math.Abs(rep.TotalValue-100.24) > 1e-9 {
		t.Fatalf("totals = %d / %v", rep.TotalCards, rep.TotalValue)
	}
	if len(rep.Games) != 2 || rep.Games[0].Game != catalog.GamePokemon || rep.Games[1].Game != catalog.GameYugioh {
		t.Fatalf("games = %+v", rep.Games)
	}
	if rep.Games[1].Cards != 2 || rep.Games[1].Priced != 0 {
		t.Fatalf("yugioh totals = %+v", rep.Games[1])
	}
	if len(rep.Methods) != 2 || rep.Methods[0].Method != "code" || rep.Methods[0].Scans != 2 {
		t.Fatalf("methods = %+v", rep.Methods)
	}
	if math.Abs(rep.Methods[0].AvgConfidence-0.95) > 1e-9 {
		t.Fatalf("avg confidence = %v", rep.Methods[0].AvgConfidence)
	}
	if rep.FailedScans != 1 {
		t.Fatalf("failed = %d", rep.FailedScans)
	}

	if _, err := BuildCollection(context.Background(), db, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound got %v", err)
	}
}
