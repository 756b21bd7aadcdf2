package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/screen/screentest"
	"github.com/ecclesia/ecclesia/internal/shared"
)

func seed(api *screentest.API) {
	api.Seed("/members",
		map[string]any{"sex": "homme", "birthDate": "2016-03-01"},
		map[string]any{"sex": "f", "birthDate": "2010-01-15"},
		map[string]any{"sex": "F", "birthDate": "1995-06-30"},
		map[string]any{"birthDate": "not a date"},
	)
	api.Seed("/committees", map[string]any{"name": "Jeunesse"}, map[string]any{"name": "Dames"})
	api.Seed("/ministries", map[string]any{"name": "Louange"})
	api.Seed("/pasteurs", map[string]any{"firstname": "Paul"})
	api.Seed("/sanctions",
		map[string]any{"status": "active"},
		map[string]any{"status": "levee"},
		map[string]any{"status": "Active"},
	)
	api.Seed("/transfers",
		map[string]any{"status": "pending"},
		map[string]any{"status": "approved"},
		map[string]any{"status": "archived"},
	)
	api.Seed("/tithes", map[string]any{"amount": 250.5}, map[string]any{"amount": "100"})
	api.Seed("/offerings", map[string]any{"amount": 40})
}

func newService(t *testing.T, api *screentest.API) (*Service, *apiclient.Client) {
	t.Helper()
	client := api.Client(t)
	svc := NewService(client)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return svc, client
}

func bucket(t *testing.T, buckets []Bucket, key string) int {
	t.Helper()
	for _, b := range buckets {
		if b.Key == key {
			return b.Count
		}
	}
	t.Fatalf("bucket %q missing", key)
	return 0
}

func TestComputeAggregatesCollections(t *testing.T) {
	api := screentest.NewAPI()
	seed(api)
	svc, _ := newService(t, api)

	snap, err := svc.Compute(apiclient.WithToken(context.Background(), "tok"))
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Members)
	assert.Equal(t, 1, bucket(t, snap.BySex, shared.SexMale))
	assert.Equal(t, 2, bucket(t, snap.BySex, shared.SexFemale))
	assert.Equal(t, 1, bucket(t, snap.BySex, unknownKey))
	assert.Equal(t, 1, bucket(t, snap.ByAge, "enfant"))
	assert.Equal(t, 1, bucket(t, snap.ByAge, "adolescent"))
	assert.Equal(t, 1, bucket(t, snap.ByAge, "jeune"))
	assert.Equal(t, 1, bucket(t, snap.ByAge, unknownKey))

	assert.Equal(t, 2, snap.Committees)
	assert.Equal(t, 1, snap.Ministries)
	assert.Equal(t, 1, snap.Pastors)
	assert.Equal(t, 2, snap.ActiveSanctions)
	assert.Equal(t, 1, bucket(t, snap.Transfers, "pending"))
	assert.Equal(t, 1, bucket(t, snap.Transfers, unknownKey))

	require.Len(t, snap.Finance, 4)
	assert.Equal(t, "offerings", snap.Finance[0].Kind)
	assert.InDelta(t, 40, snap.Finance[0].Amount, 0.001)
	assert.Equal(t, 2, snap.Finance[1].Count)
	assert.InDelta(t, 350.5, snap.Finance[1].Amount, 0.001)
	assert.Zero(t, snap.Finance[3].Count)
}

func TestComputeFailsWhenOneCollectionFails(t *testing.T) {
	api := screentest.NewAPI()
	seed(api)
	api.Fail("GET", "/moissons", 500, "Erreur interne du serveur")
	svc, _ := newService(t, api)

	_, err := svc.Compute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moissons")
	assert.Equal(t, "Erreur interne du serveur", apiclient.ServerMessage(err))
}

func TestSnapshotCachedUntilMutation(t *testing.T) {
	api := screentest.NewAPI()
	seed(api)
	svc, client := newService(t, api)
	ctx := context.Background()

	first, cached, err := svc.Snapshot(ctx, "church:7")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, first.Committees)

	api.Seed("/committees", map[string]any{"name": "Diacres"})
	again, cached, err := svc.Snapshot(ctx, "church:7")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 2, again.Committees)

	require.NoError(t, client.Cache().Bump(ctx))
	fresh, cached, err := svc.Snapshot(ctx, "church:7")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 3, fresh.Committees)
}

func TestRowsFormatAmounts(t *testing.T) {
	snap := Snapshot{Members: 3, Finance: []Total{{Kind: "tithes", Label: "Dîmes", Count: 2, Amount: 350.5}}}
	rows := Rows(snap, nil)
	assert.Contains(t, rows, Row{Label: "Membres", Value: "3"})
	assert.Contains(t, rows, Row{Label: "Dîmes - total", Value: "350.50 HTG"})
}
