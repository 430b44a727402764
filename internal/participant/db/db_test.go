package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"ms-checkout/internal/models"
	"ms-checkout/internal/participant/db"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	repo := db.New(bunDB, nil)
	require.NoError(t, repo.CreateTables(context.Background()))
	return repo
}

func newParticipant(t *testing.T, checkoutID, name string) *models.Participant {
	t.Helper()
	p, err := models.NewParticipant(models.NewParticipantParams{
		Name:       name,
		Email:      "guest@example.com",
		Phone:      "11987654321",
		Document:   "12345678900",
		EventID:    "event-1",
		CheckoutID: checkoutID,
	})
	require.NoError(t, err)
	return p
}

func TestSaveAndLookupParticipants(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first := newParticipant(t, "chk-1", "Ana Souza")
	token := "qr-token-1"
	first.QRCode = &token
	require.NoError(t, repo.SaveParticipant(ctx, first))
	require.NotEmpty(t, first.ID)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.SaveParticipant(ctx, newParticipant(t, "chk-1", "Bruno Lima")))
	require.NoError(t, repo.SaveParticipant(ctx, newParticipant(t, "chk-2", "Carla Dias")))

	got, err := repo.GetParticipantByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana Souza", got.Name)
	assert.Equal(t, models.TicketFull, got.TicketType)

	byQR, err := repo.GetParticipantByQRCode(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, byQR)
	assert.Equal(t, first.ID, byQR.ID)

	list, err := repo.GetParticipantsByCheckoutID(ctx, "chk-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana Souza", list[0].Name)
	assert.Equal(t, "Bruno Lima", list[1].Name)

	missing, err := repo.GetParticipantByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateParticipant_CheckIn(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	p := newParticipant(t, "chk-1", "Ana Souza")
	require.NoError(t, repo.SaveParticipant(ctx, p))

	require.NoError(t, p.CheckIn(time.Now()))
	require.NoError(t, repo.UpdateParticipant(ctx, p))

	got, err := repo.GetParticipantByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.CheckedIn)
	require.NotNil(t, got.CheckedInAt)
	assert.WithinDuration(t, *p.CheckedInAt, *got.CheckedInAt, time.Millisecond)
}

func TestDeleteParticipantsByCheckoutID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveParticipant(ctx, newParticipant(t, "chk-1", "Ana Souza")))
	require.NoError(t, repo.SaveParticipant(ctx, newParticipant(t, "chk-1", "Bruno Lima")))
	require.NoError(t, repo.SaveParticipant(ctx, newParticipant(t, "chk-2", "Carla Dias")))

	n, err := repo.DeleteParticipantsByCheckoutID(ctx, "chk-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rest, err := repo.GetParticipantsByCheckoutID(ctx, "chk-2")
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}
