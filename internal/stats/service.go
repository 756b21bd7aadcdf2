package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/listing"
	"github.com/ecclesia/ecclesia/internal/shared"
)

// Lister fetches a whole collection.
type Lister[T any] interface {
	List(ctx context.Context) ([]T, error)
}

type financeSource struct {
	kind  string
	label string
	list  Lister[amountRecord]
}

// Service computes snapshots and caches them under the collection version,
// so any mutation through the API client invalidates them.
type Service struct {
	members    Lister[memberRecord]
	committees Lister[entry]
	ministries Lister[entry]
	pastors    Lister[entry]
	sanctions  Lister[statusRecord]
	transfers  Lister[statusRecord]
	finance    []financeSource
	cache      *apiclient.Cache
	now        func() time.Time
}

// NewService reads every collection through client.
func NewService(client *apiclient.Client) *Service {
	return &Service{
		members:    apiclient.NewResource[memberRecord](client, "members"),
		committees: apiclient.NewResource[entry](client, "committees"),
		ministries: apiclient.NewResource[entry](client, "ministries"),
		pastors:    apiclient.NewResource[entry](client, "pasteurs"),
		sanctions:  apiclient.NewResource[statusRecord](client, "sanctions"),
		transfers:  apiclient.NewResource[statusRecord](client, "transfers"),
		finance: []financeSource{
			{kind: "offerings", label: "Offrandes", list: apiclient.NewResource[amountRecord](client, "offerings")},
			{kind: "tithes", label: "Dîmes", list: apiclient.NewResource[amountRecord](client, "tithes")},
			{kind: "donations", label: "Dons", list: apiclient.NewResource[amountRecord](client, "donations")},
			{kind: "moissons", label: "Moissons", list: apiclient.NewResource[amountRecord](client, "moissons")},
		},
		cache: client.Cache(),
		now:   time.Now,
	}
}

// Snapshot returns the cached snapshot for scope, computing it on a miss.
// The bool reports a cache hit.
func (s *Service) Snapshot(ctx context.Context, scope string) (Snapshot, bool, error) {
	key, err := s.cache.BuildKey(ctx, "stats", scope)
	if err != nil {
		snap, err := s.Compute(ctx)
		return snap, false, err
	}
	return apiclient.Fetch(ctx, s.cache, key, s.Compute)
}

// Compute fetches the collections concurrently and aggregates them.
func (s *Service) Compute(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{GeneratedAt: s.now().UTC()}
	var (
		members              []memberRecord
		sanctions, transfers []statusRecord
		totals               = make([]Total, len(s.finance))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = s.members.List(ctx)
		return wrap("members", err)
	})
	g.Go(func() error {
		items, err := s.committees.List(ctx)
		snap.Committees = len(items)
		return wrap("committees", err)
	})
	g.Go(func() error {
		items, err := s.ministries.List(ctx)
		snap.Ministries = len(items)
		return wrap("ministries", err)
	})
	g.Go(func() error {
		items, err := s.pastors.List(ctx)
		snap.Pastors = len(items)
		return wrap("pastors", err)
	})
	g.Go(func() error {
		var err error
		sanctions, err = s.sanctions.List(ctx)
		return wrap("sanctions", err)
	})
	g.Go(func() error {
		var err error
		transfers, err = s.transfers.List(ctx)
		return wrap("transfers", err)
	})
	for i, src := range s.finance {
		i, src := i, src
		g.Go(func() error {
			items, err := src.list.List(ctx)
			if err != nil {
				return wrap(src.kind, err)
			}
			totals[i] = sum(src, items)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap.Members = len(members)
	snap.BySex, snap.ByAge = demographics(members, s.now())
	for _, sanction := range sanctions {
		if strings.EqualFold(sanction.Status, "active") {
			snap.ActiveSanctions++
		}
	}
	snap.Transfers = countStatuses(transfers, transferStatuses)
	snap.Finance = totals
	return snap, nil
}

func wrap(collection string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("stats: %s: %w", collection, err)
}

var (
	sexLabels = []Bucket{{Key: shared.SexMale, Label: "Hommes"}, {Key: shared.SexFemale, Label: "Femmes"}}
	ageLabels = []Bucket{
		{Key: listing.AgeChild, Label: "Enfants"},
		{Key: listing.AgeAdolescent, Label: "Adolescents"},
		{Key: listing.AgeYoung, Label: "Jeunes"},
		{Key: listing.AgeAdult, Label: "Adultes"},
	}
	transferStatuses = []Bucket{
		{Key: "pending", Label: "En attente"},
		{Key: "approved", Label: "Approuvés"},
		{Key: "rejected", Label: "Rejetés"},
	}
)

const unknownKey = "inconnu"

func demographics(members []memberRecord, now time.Time) ([]Bucket, []Bucket) {
	bySex := withUnknown(sexLabels)
	byAge := withUnknown(ageLabels)
	for _, m := range members {
		increment(bySex, shared.NormalizeSex(m.Sex))
		key := unknownKey
		if born, ok := listing.ParseDate(m.BirthDate); ok {
			key = listing.AgeBucket(listing.Age(born, now))
		}
		increment(byAge, key)
	}
	return bySex, byAge
}

func countStatuses(items []statusRecord, labels []Bucket) []Bucket {
	out := withUnknown(labels)
	for _, item := range items {
		increment(out, strings.ToLower(strings.TrimSpace(item.Status)))
	}
	return out
}

func withUnknown(labels []Bucket) []Bucket {
	out := make([]Bucket, 0, len(labels)+1)
	out = append(out, labels...)
	return append(out, Bucket{Key: unknownKey, Label: "Non renseigné"})
}

func increment(buckets []Bucket, key string) {
	for i := range buckets {
		if buckets[i].Key == key {
			buckets[i].Count++
			return
		}
	}
	buckets[len(buckets)-1].Count++
}

func sum(src financeSource, items []amountRecord) Total {
	t := Total{Kind: src.kind, Label: src.label, Count: len(items)}
	for _, item := range items {
		if v, err := item.Amount.Float64(); err == nil {
			t.Amount += v
		}
	}
	return t
}
