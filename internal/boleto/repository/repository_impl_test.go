package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/cobranca/internal/boleto/domain"
	"github.com/smallbiznis/cobranca/internal/boleto/repository"
	"gorm.io/gorm"
)

func newRepoFixture(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Boleto{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return db, node
}

func insertBoleto(t *testing.T, db *gorm.DB, node *snowflake.Node, bankCode string, status domain.Status, lastSyncedAt *time.Time) *domain.Boleto {
	t.Helper()
	boleto := &domain.Boleto{
		ID:           node.Generate(),
		FaturaID:     node.Generate(),
		BankCode:     bankCode,
		NossoNumero:  node.Generate().String(),
		Valor:        15000,
		Vencimento:   time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC),
		Status:       status,
		LastSyncedAt: lastSyncedAt,
	}
	if err := repository.Provide().Insert(context.Background(), db, boleto); err != nil {
		t.Fatalf("insert boleto: %v", err)
	}
	return boleto
}

func claim(t *testing.T, db *gorm.DB, bankCode string, syncedBefore time.Time) []domain.Boleto {
	t.Helper()
	var claimed []domain.Boleto
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		claimed, err = repository.Provide().ClaimForReconciliation(context.Background(), tx, bankCode, syncedBefore, 10)
		return err
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	return claimed
}

func TestClaimForReconciliationScopesByBank(t *testing.T) {
	db, node := newRepoFixture(t)

	bradesco := insertBoleto(t, db, node, "237", domain.StatusRegistrado, nil)
	insertBoleto(t, db, node, "341", domain.StatusRegistrado, nil)

	claimed := claim(t, db, "237", time.Now().UTC())
	if len(claimed) != 1 {
		t.Fatalf("expected only the bradesco boleto, got %d rows", len(claimed))
	}
	if claimed[0].ID != bradesco.ID || claimed[0].BankCode != "237" {
		t.Fatalf("claimed wrong row: id=%d bank_code=%s", claimed[0].ID, claimed[0].BankCode)
	}
}

func TestClaimForReconciliationSkipsRecentlySynced(t *testing.T) {
	db, node := newRepoFixture(t)
	cycleStart := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)

	neverSynced := insertBoleto(t, db, node, "237", domain.StatusRegistrado, nil)
	staleAt := cycleStart.Add(-time.Hour)
	stale := insertBoleto(t, db, node, "237", domain.StatusPendente, &staleAt)
	freshAt := cycleStart.Add(time.Minute)
	insertBoleto(t, db, node, "237", domain.StatusRegistrado, &freshAt)
	insertBoleto(t, db, node, "237", domain.StatusPago, nil)

	claimed := claim(t, db, "237", cycleStart)
	if len(claimed) != 2 {
		t.Fatalf("expected the never-synced and stale boletos, got %d rows", len(claimed))
	}
	got := map[snowflake.ID]bool{}
	for _, b := range claimed {
		got[b.ID] = true
	}
	if !got[neverSynced.ID] || !got[stale.ID] {
		t.Fatalf("claimed wrong rows: %v", got)
	}
}
