// Package lookup resolves external reference tokens (country codes or names,
// transport codes or names) to internal reference IDs.
package lookup

import (
	"log/slog"
	"strings"

	"github.com/biter777/countries"

	"github.com/anucha1993/tour-api-sub001/internal/domain/mapping"
	"github.com/anucha1993/tour-api-sub001/internal/errs"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// Resolver resolves reference tokens against the reference tables.
// Resolution order: exact code match, then case-insensitive name match,
// then ISO enrichment for countries, then auto-create when enabled.
type Resolver struct {
	repo   storage.ReferenceRepository
	logger *slog.Logger
}

var _ mapping.Resolver = (*Resolver)(nil)

// NewResolver creates a resolver backed by the reference repository.
func NewResolver(repo storage.ReferenceRepository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Resolve maps a token to an internal reference ID. Unresolvable tokens fail
// with a lookup error so callers can treat them as per-field warnings.
func (r *Resolver) Resolve(kind, token string, autoCreate bool) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, errs.Newf(errs.KindLookupUnresolved, "%s token is empty", kind)
	}

	switch kind {
	case mapping.LookupCountry:
		return r.resolveCountry(token, autoCreate)
	case mapping.LookupTransport:
		return r.resolveTransport(token, autoCreate)
	default:
		return 0, errs.Newf(errs.KindConfiguration, "unknown lookup kind %q", kind)
	}
}

func (r *Resolver) resolveCountry(token string, autoCreate bool) (int64, error) {
	if found, err := r.repo.FindCountryByCode(token); err != nil {
		return 0, err
	} else if found != nil {
		return found.ID, nil
	}

	if found, err := r.repo.FindCountryByName(token); err != nil {
		return 0, err
	} else if found != nil {
		return found.ID, nil
	}

	// Unknown token. The ISO registry turns names and codes in assorted
	// spellings into canonical code/name pairs, so an auto-created row is
	// well-formed rather than a verbatim copy of upstream text.
	candidate := storage.Country{Name: token}
	if iso := countries.ByName(token); iso != countries.Unknown {
		candidate = storage.Country{
			Code: iso.Alpha2(),
			ISO3: iso.Alpha3(),
			Name: iso.String(),
		}
	}

	if !autoCreate {
		return 0, errs.Newf(errs.KindLookupUnresolved, "country %q not found", token)
	}

	created, err := r.repo.FindOrCreateCountry(&candidate)
	if err != nil {
		return 0, err
	}
	r.logger.Info("auto-created country",
		"token", token,
		"code", created.Code,
		"name", created.Name,
	)
	return created.ID, nil
}

func (r *Resolver) resolveTransport(token string, autoCreate bool) (int64, error) {
	if found, err := r.repo.FindTransportByCode(token); err != nil {
		return 0, err
	} else if found != nil {
		return found.ID, nil
	}

	if found, err := r.repo.FindTransportByName(token); err != nil {
		return 0, err
	} else if found != nil {
		return found.ID, nil
	}

	if !autoCreate {
		return 0, errs.Newf(errs.KindLookupUnresolved, "transport %q not found", token)
	}

	candidate := storage.Transport{Name: token}
	// Short uppercase tokens are carrier codes, not names.
	if len(token) <= 3 && token == strings.ToUpper(token) {
		candidate = storage.Transport{Code: token, Name: token}
	}

	created, err := r.repo.FindOrCreateTransport(&candidate)
	if err != nil {
		return 0, err
	}
	r.logger.Info("auto-created transport", "token", token, "name", created.Name)
	return created.ID, nil
}
