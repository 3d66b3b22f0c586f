package sync

import (
	"fmt"
	"strings"

	"clubsync/internal/domain/record"
)

type Strategy string

const (
	LastWriteWins     Strategy = "LAST_WRITE_WINS"
	LocalWins         Strategy = "LOCAL_WINS"
	RemoteWins        Strategy = "REMOTE_WINS"
	HigherVersionWins Strategy = "HIGHER_VERSION_WINS"
	Manual            Strategy = "MANUAL"
)

// ParseStrategy разбирает стратегию без учёта регистра. Пустая строка
// означает стратегию по умолчанию.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case "":
		return LastWriteWins, nil
	case LastWriteWins, LocalWins, RemoteWins, HigherVersionWins, Manual:
		return st, nil
	}
	return "", fmt.Errorf("unknown conflict strategy: %s", s)
}

func (s Strategy) String() string {
	return string(s)
}

type Action string

const (
	TakeLocal        Action = "TAKE_LOCAL"
	TakeRemote       Action = "TAKE_REMOTE"
	ManualResolution Action = "MANUAL_RESOLUTION"
	NoAction         Action = "NO_ACTION"
)

// ParseAction разбирает действие, допуская короткие формы local и remote.
func ParseAction(s string) (Action, error) {
	switch a := strings.ToUpper(strings.TrimSpace(s)); a {
	case "LOCAL", string(TakeLocal):
		return TakeLocal, nil
	case "REMOTE", string(TakeRemote):
		return TakeRemote, nil
	case string(ManualResolution), string(NoAction):
		return Action(a), nil
	}
	return "", fmt.Errorf("unknown action: %s", s)
}

// Resolution решение по записи с пояснением для журнала
type Resolution struct {
	Action Action
	Reason string
}

// Resolve выбирает действие для пары версий по классификации и стратегии.
func Resolve(local, remote *record.Record, c Classification, strategy Strategy) Resolution {
	if strategy == "" {
		strategy = LastWriteWins
	}

	if c.Type == NoConflict {
		return materialize(local, remote, c)
	}

	switch strategy {
	case LocalWins:
		return Resolution{TakeLocal, "local wins by strategy"}
	case RemoteWins:
		return Resolution{TakeRemote, "remote wins by strategy"}
	case Manual:
		return Resolution{ManualResolution, fmt.Sprintf("%s left for manual resolution", c.Type)}
	case HigherVersionWins:
		switch {
		case local.Meta.SyncVersion > remote.Meta.SyncVersion:
			return Resolution{TakeLocal, fmt.Sprintf("local version %d is higher than %d",
				local.Meta.SyncVersion, remote.Meta.SyncVersion)}
		case remote.Meta.SyncVersion > local.Meta.SyncVersion:
			return Resolution{TakeRemote, fmt.Sprintf("remote version %d is higher than %d",
				remote.Meta.SyncVersion, local.Meta.SyncVersion)}
		}
		res := lastWriteWins(local, remote, c.Type)
		res.Reason = "equal versions, " + res.Reason
		return res
	default:
		return lastWriteWins(local, remote, c.Type)
	}
}

// materialize выбирает сторону, когда конфликта нет.
func materialize(local, remote *record.Record, c Classification) Resolution {
	switch {
	case local == nil && remote == nil:
		return Resolution{NoAction, "both versions absent"}
	case local == nil:
		return Resolution{TakeRemote, "no local version"}
	case remote == nil:
		return Resolution{TakeLocal, "no remote version"}
	case local.IsDeleted() && remote.IsDeleted():
		return Resolution{NoAction, "deleted on both sides"}
	case local.IsDeleted():
		return Resolution{TakeLocal, "local delete was not superseded"}
	case remote.IsDeleted():
		return Resolution{TakeRemote, "remote delete was not superseded"}
	case c.LocalHash == c.RemoteHash:
		return Resolution{NoAction, "content is identical"}
	case c.LocalModified && !c.RemoteModified:
		return Resolution{TakeLocal, "only local side changed"}
	case c.RemoteModified && !c.LocalModified:
		return Resolution{TakeRemote, "only remote side changed"}
	case local.Meta.SyncStatus == record.StatusPending:
		return Resolution{TakeLocal, "local change is pending"}
	case remote.Meta.SyncStatus == record.StatusPending:
		return Resolution{TakeRemote, "remote change is pending"}
	default:
		return Resolution{TakeRemote, "remote store is authoritative"}
	}
}

func lastWriteWins(local, remote *record.Record, t ConflictType) Resolution {
	if t == DeleteModifyConflict {
		if local.IsDeleted() {
			if remote.Meta.UpdatedAt.After(*local.Meta.DeletedAt) {
				return Resolution{TakeRemote, "remote edit postdates local delete"}
			}
			return Resolution{TakeLocal, "local delete postdates remote edit"}
		}
		if local.Meta.UpdatedAt.After(*remote.Meta.DeletedAt) {
			return Resolution{TakeLocal, "local edit postdates remote delete"}
		}
		return Resolution{TakeRemote, "remote delete postdates local edit"}
	}

	if local.Meta.UpdatedAt.After(remote.Meta.UpdatedAt) {
		return Resolution{TakeLocal, "local edit is newer"}
	}
	if remote.Meta.UpdatedAt.After(local.Meta.UpdatedAt) {
		return Resolution{TakeRemote, "remote edit is newer"}
	}
	return Resolution{TakeRemote, "equal timestamps, remote store is authoritative"}
}
