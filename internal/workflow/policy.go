package workflow

import (
	"os"
	"strings"

	"github.com/binjactl/uiengine/internal/domain"
)

// DefaultDatabaseExtension is the analysis database suffix.
const DefaultDatabaseExtension = ".bndb"

// ResolvePolicy decides what a quit should answer to a save prompt. auto
// becomes save when the loaded file is itself a database or a companion
// database already sits next to it, and dont-save otherwise. The returned
// policy carries its save target and is not modified afterwards.
func ResolvePolicy(loadedFilename string, requested domain.Decision, dbExt string) domain.SavePolicy {
	if dbExt == "" {
		dbExt = DefaultDatabaseExtension
	}
	p := domain.SavePolicy{
		RequestedDecision: requested,
		ResolvedDecision:  requested,
		LoadedFilename:    strings.TrimSpace(loadedFilename),
	}
	if p.LoadedFilename != "" {
		p.LoadedIsArchiveFormat = strings.HasSuffix(strings.ToLower(p.LoadedFilename), strings.ToLower(dbExt))
		if !p.LoadedIsArchiveFormat {
			if _, err := os.Stat(p.LoadedFilename + dbExt); err == nil {
				p.CompanionDatabaseExists = true
			}
		}
	}
	switch requested {
	case domain.DecisionSave, domain.DecisionDontSave, domain.DecisionCancel:
	default:
		p.RequestedDecision = domain.DecisionAuto
		if p.LoadedIsArchiveFormat || p.CompanionDatabaseExists {
			p.ResolvedDecision = domain.DecisionSave
		} else {
			p.ResolvedDecision = domain.DecisionDontSave
		}
	}
	p.SaveTarget = ComputeSaveTarget(p, dbExt)
	return p
}

// ComputeSaveTarget returns where a pre-save writes. A database is saved in
// place; anything else is saved to a sibling with dbExt appended, so the
// original input is never overwritten.
func ComputeSaveTarget(p domain.SavePolicy, dbExt string) string {
	if dbExt == "" {
		dbExt = DefaultDatabaseExtension
	}
	if p.LoadedFilename == "" {
		return ""
	}
	if p.LoadedIsArchiveFormat {
		return p.LoadedFilename
	}
	return p.LoadedFilename + dbExt
}
