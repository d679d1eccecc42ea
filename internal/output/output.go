// Package output implements C7: sorting, filtering, formatting, and
// publishing the final proxy lists, adapted from ProxyHawk's
// internal/output package.
package output

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"

	pherrors "github.com/proxyharvest/proxyharvest/internal/errors"
	"github.com/proxyharvest/proxyharvest/internal/geoip"
	"github.com/proxyharvest/proxyharvest/internal/proxy"
	"github.com/proxyharvest/proxyharvest/internal/storage"
)

// Entry is one proxies.json record (spec §4.7). Its fields are declared in
// alphabetical order of their JSON keys, so encoding/json emits sorted keys.
type Entry struct {
	ExitIP      *string        `json:"exit_ip"`
	Geolocation map[string]any `json:"geolocation"`
	Host        string         `json:"host"`
	Password    *string        `json:"password"`
	Port        int            `json:"port"`
	Protocol    string         `json:"protocol"`
	Timeout     *float64       `json:"timeout"`
	Username    *string        `json:"username"`
}

// Params bundles everything C7 needs beyond storage itself.
type Params struct {
	OutputJSON        bool
	OutputTXT         bool
	OutputPath        string
	SortBySpeed       bool
	CheckingEnabled   bool
	AnonymityKnown    bool // false when check_website_type == UNKNOWN
	RealIP            string
	EnableGeolocation bool
	GeoReader         geoip.Lookuper
}

// Write runs the complete output pipeline: optional drop_unchecked sweep,
// then JSON and/or TXT emission. A filesystem error is fatal (§7
// OutputIO); artifacts already written are left in place, matching the
// directory-granularity atomicity the spec calls for.
func Write(store *storage.Storage, params Params) error {
	if params.CheckingEnabled {
		store.DropUnchecked()
	}

	if params.OutputJSON {
		if err := writeJSON(store, params); err != nil {
			return pherrors.NewOutputError("writing JSON output", err)
		}
	}
	if params.OutputTXT {
		if err := writeTXT(store, params); err != nil {
			return pherrors.NewOutputError("writing TXT output", err)
		}
	}
	return nil
}

func writeJSON(store *storage.Storage, params Params) error {
	proxies := store.Snapshot()
	bySpeed(proxies) // JSON is always ordered by timeout ascending, per §4.7

	geo := params.GeoReader
	if geo == nil || !params.EnableGeolocation {
		geo = geoip.NullReader{}
	}

	entries := make([]Entry, 0, len(proxies))
	for _, p := range proxies {
		entry := Entry{
			Protocol: strings.ToLower(string(p.Protocol)),
			Username: p.Username,
			Password: p.Password,
			Host:     p.Host,
			Port:     p.Port,
			ExitIP:   p.ExitIP,
		}
		if p.Timeout != nil {
			rounded := math.Round(*p.Timeout*100) / 100
			entry.Timeout = &rounded
		}
		if p.ExitIP != nil {
			if record, ok := geo.Lookup(*p.ExitIP); ok {
				entry.Geolocation = record
			}
		}
		entries = append(entries, entry)
	}

	if err := os.MkdirAll(params.OutputPath, 0o755); err != nil {
		return err
	}

	compact, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(params.OutputPath, "proxies.json"), compact, 0o644); err != nil {
		return err
	}

	// "pretty" means 2-space indent with sorted keys (§6); encoding/json
	// emits struct fields in declaration order, which Entry keeps
	// alphabetical, and sorts map keys itself, so no further key-sorting
	// pass is needed here.
	pretty, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(params.OutputPath, "proxies_pretty.json"), pretty, 0o644)
}

type txtTree struct {
	dir           string
	anonymousOnly bool
}

func writeTXT(store *storage.Storage, params Params) error {
	trees := []txtTree{{dir: filepath.Join(params.OutputPath, "proxies")}}
	if params.AnonymityKnown {
		trees = append(trees, txtTree{dir: filepath.Join(params.OutputPath, "proxies_anonymous"), anonymousOnly: true})
	}

	grouped := store.Grouped()
	order := store.GroupOrder()

	for _, tree := range trees {
		if err := replaceDir(tree.dir); err != nil {
			return err
		}

		all := filterAnonymous(store.Snapshot(), tree.anonymousOnly, params.RealIP)
		SortBy(all, params.SortBySpeed)
		if err := writeLines(filepath.Join(tree.dir, "all.txt"), all, true); err != nil {
			return err
		}

		for _, proto := range order {
			members := append([]proxy.Proxy(nil), grouped[proto]...)
			members = filterAnonymous(members, tree.anonymousOnly, params.RealIP)
			SortBy(members, params.SortBySpeed)
			name := strings.ToLower(string(proto)) + ".txt"
			if err := writeLines(filepath.Join(tree.dir, name), members, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func filterAnonymous(proxies []proxy.Proxy, anonymousOnly bool, realIP string) []proxy.Proxy {
	if !anonymousOnly {
		return proxies
	}
	out := make([]proxy.Proxy, 0, len(proxies))
	for _, p := range proxies {
		if p.IsAnonymous(realIP) {
			out = append(out, p)
		}
	}
	return out
}

// replaceDir performs the remove-then-recreate the spec calls atomic
// directory replacement (§4.7/§12). os.RemoveAll already treats a missing
// target as success, matching the original's rmtree-with-missing-ok.
func replaceDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func writeLines(path string, proxies []proxy.Proxy, includeProtocol bool) error {
	var b strings.Builder
	for i, p := range proxies {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.AsString(includeProtocol))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
