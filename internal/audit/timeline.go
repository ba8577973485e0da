// Package audit serves the admin audit timeline over the rows the domain
// services write into audit_logs.
package audit

import (
	"math"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxPage         = math.MaxInt32 / (maxPageSize + 1)
)

// TimelineFilters narrows the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	EntityID int64
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is a single audit entry joined with the actor's username.
type TimelineRow struct {
	ID        int64          `json:"id"`
	At        time.Time      `json:"at"`
	ActorID   int64          `json:"actor_id,omitempty"`
	ActorName string         `json:"actor,omitempty"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  int64          `json:"entity_id"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// PagingInfo describes a window of the timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

func (f TimelineFilters) normalized() TimelineFilters {
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Page > maxPage {
		f.Page = maxPage
	}
	return f
}
