package loader

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemausage/internal/annotation"
)

// ForeignKeyAnnotationSource selects where foreign-key annotation names are read from
type ForeignKeyAnnotationSource string

const (
	// FKAnnotationsLastKey reads names from the last key scanned, values from the foreign key
	FKAnnotationsLastKey ForeignKeyAnnotationSource = "last-key"
	// FKAnnotationsOwn reads names and values from the foreign key itself
	FKAnnotationsOwn ForeignKeyAnnotationSource = "foreign-key"
)

// ParseForeignKeyAnnotationSource validates a flag value
func ParseForeignKeyAnnotationSource(s string) (ForeignKeyAnnotationSource, error) {
	switch ForeignKeyAnnotationSource(s) {
	case "", FKAnnotationsLastKey:
		return FKAnnotationsLastKey, nil
	case FKAnnotationsOwn:
		return FKAnnotationsOwn, nil
	}
	return "", fmt.Errorf("invalid foreign key annotation source: %s (must be 'last-key' or 'foreign-key')", s)
}

// NameMatch selects how Exclusion.TableNamePattern is compared with a table name
type NameMatch int

const (
	// MatchContains excludes tables whose name contains the pattern
	MatchContains NameMatch = iota
	// MatchContainedIn excludes tables whose name is a substring of the pattern
	MatchContainedIn
)

// ParseNameMatch reads "contains" or "contained-in"
func ParseNameMatch(s string) (NameMatch, error) {
	switch s {
	case "", "contains":
		return MatchContains, nil
	case "contained-in":
		return MatchContainedIn, nil
	}
	return MatchContains, fmt.Errorf("invalid name match: %s (must be 'contains' or 'contained-in')", s)
}

// Exclusion describes the infrastructure and non-domain tables left out of every count
type Exclusion struct {
	InfrastructureSchemas []string
	NonDomainSchemas      []string
	TableNamePattern      string
	NameMatch             NameMatch
}

// DefaultExclusion returns the exclusion rules for the known deployments
func DefaultExclusion() Exclusion {
	return Exclusion{
		InfrastructureSchemas: []string{"_ermrest", "_ermrest_history", "_acl_admin"},
		NonDomainSchemas: []string{
			"scratch", "cirm_rbk", "data_commons", "etl_util", "public",
			"gudmap_meta", "gudmap_raw", "gudmap_submissions",
			"protwis_schema", "protwis_mgmt", "iobox_data",
		},
		TableNamePattern: "wufoo",
		NameMatch:        MatchContains,
	}
}

// Excludes reports whether the table must be left out
func (e Exclusion) Excludes(schemaName, tableName string) bool {
	if contains(e.InfrastructureSchemas, schemaName) {
		return true
	}
	if e.TableNamePattern != "" {
		switch e.NameMatch {
		case MatchContainedIn:
			if strings.Contains(e.TableNamePattern, tableName) {
				return true
			}
		default:
			if strings.Contains(tableName, e.TableNamePattern) {
				return true
			}
		}
	}
	return contains(e.NonDomainSchemas, schemaName)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// SystemColumns are never scanned for annotations
var SystemColumns = []string{"RID", "RMB", "RCB", "RMT", "RCT"}

// Options configures a Loader
type Options struct {
	Whitelist             annotation.Whitelist
	Exclusion             Exclusion
	ForeignKeyAnnotations ForeignKeyAnnotationSource
	SystemColumns         []string
}

// DefaultOptions returns the options matching the historical analysis
func DefaultOptions() Options {
	return Options{
		Whitelist:             annotation.HistoricalWhitelist(),
		Exclusion:             DefaultExclusion(),
		ForeignKeyAnnotations: FKAnnotationsLastKey,
		SystemColumns:         SystemColumns,
	}
}
