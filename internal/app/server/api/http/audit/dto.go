package audit

import (
	"clubsync/internal/domain/audit"
)

type listInput struct {
	Limit int `query:"limit" default:"100" minimum:"0" maximum:"1000" doc:"Maximum number of entries"`
}

type listOutput struct {
	Body ListResponse
}

type ListResponse struct {
	Entries []audit.Entry `json:"entries"`
}

type pruneInput struct {
	Days int `query:"days" required:"true" doc:"Remove entries older than this many days"`
}

type pruneOutput struct {
	Body PruneResponse
}

type PruneResponse struct {
	Removed int64 `json:"removed"`
}
