// Package stats aggregates the church collections into the dashboard
// snapshot shown on the home page.
package stats

import (
	"encoding/json"
	"time"
)

// Bucket is one labelled count.
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Total sums one finance collection.
type Total struct {
	Kind   string  `json:"kind"`
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// Snapshot is the aggregate view of a church at GeneratedAt.
type Snapshot struct {
	GeneratedAt     time.Time `json:"generated_at"`
	Members         int       `json:"members"`
	BySex           []Bucket  `json:"by_sex"`
	ByAge           []Bucket  `json:"by_age"`
	Committees      int       `json:"committees"`
	Ministries      int       `json:"ministries"`
	Pastors         int       `json:"pastors"`
	ActiveSanctions int       `json:"active_sanctions"`
	Transfers       []Bucket  `json:"transfers"`
	Finance         []Total   `json:"finance"`
}

// Row is one exported statistic.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type memberRecord struct {
	Sex       string `json:"sex"`
	BirthDate string `json:"birthDate"`
}

type statusRecord struct {
	Status string `json:"status"`
}

type amountRecord struct {
	Amount json.Number `json:"amount"`
}

type entry struct{}
