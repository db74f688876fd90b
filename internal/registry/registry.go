// Package registry provides the process-wide market/symbol/channel
// lookup table, grounded on original_source/src/main.rs's
// `MARKETS: HashMap<String, Market>` / `Market(HashMap<String, Symbol>)` /
// `Symbol(HashMap<String, Mutex<Channel>>)` nesting, rebuilt here as a
// plain Go map-of-maps guarded by one structural mutex plus each Channel's
// own mutex for its data operations — matching the original's per-channel
// `Mutex<Channel>` granularity rather than one lock for the whole
// registry. Per Design Notes §9, this is a configuration concern that
// lives outside store: the core is constructible many times over
// different paths without touching any shared state: this package is
// where the "many times" becomes "once, looked up by name."
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var channelFileNamePattern = regexp.MustCompile(`^([a-zA-Z0-9_]+)\.(btc|usd)\.store$`)

// Registry is the top-level market -> symbol -> channel table.
type Registry struct {
	mu         sync.Mutex
	dataDir    string
	archiveDir string
	markets    map[string]map[string]map[string]*Channel
}

// New builds a Registry rooted at dataDir, eagerly opening every channel
// file found by scanning `<dataDir>/<market>/<symbol>/<channel>.<kind>.store`,
// in the same directory/regex-scan style as the teacher's
// segmentmanager.NewDiskSegmentManager recovering segment files on
// startup. Sealed archive segments for a channel are written under
// `<archiveDir>/<market>/<symbol>/<channel>/`.
func New(dataDir, archiveDir string) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: create data dir %s: %w", dataDir, err)
	}

	r := &Registry{
		dataDir:    dataDir,
		archiveDir: archiveDir,
		markets:    make(map[string]map[string]map[string]*Channel),
	}

	marketDirs, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("registry: read data dir %s: %w", dataDir, err)
	}

	for _, marketDir := range marketDirs {
		if !marketDir.IsDir() {
			continue
		}
		market := marketDir.Name()

		symbolDirs, err := os.ReadDir(filepath.Join(dataDir, market))
		if err != nil {
			return nil, fmt.Errorf("registry: read market dir %s: %w", market, err)
		}

		for _, symbolDir := range symbolDirs {
			if !symbolDir.IsDir() {
				continue
			}
			symbol := symbolDir.Name()

			entries, err := os.ReadDir(filepath.Join(dataDir, market, symbol))
			if err != nil {
				return nil, fmt.Errorf("registry: read symbol dir %s/%s: %w", market, symbol, err)
			}

			for _, entry := range entries {
				if !entry.Type().IsRegular() {
					continue
				}
				matches := channelFileNamePattern.FindStringSubmatch(entry.Name())
				if len(matches) != 3 {
					continue
				}
				channelName, kindName := matches[1], matches[2]

				path := filepath.Join(dataDir, market, symbol, entry.Name())
				archiveDir := filepath.Join(r.archiveDir, market, symbol, channelName)
				ch, err := openChannel(path, kindName, archiveDir)
				if err != nil {
					return nil, fmt.Errorf("registry: open %s: %w", path, err)
				}
				if err := ch.VerifyArchive(); err != nil {
					return nil, fmt.Errorf("registry: %s/%s/%s: %w", market, symbol, channelName, err)
				}

				r.set(market, symbol, channelName, ch)
			}
		}
	}

	return r, nil
}

func openChannel(path, kindName, archiveDir string) (*Channel, error) {
	switch kindName {
	case "btc":
		return openBtcChannel(path, archiveDir)
	case "usd":
		return openUsdChannel(path, archiveDir)
	default:
		return nil, fmt.Errorf("registry: unknown channel kind %q", kindName)
	}
}

func (r *Registry) set(market, symbol, channel string, ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.markets[market] == nil {
		r.markets[market] = make(map[string]map[string]*Channel)
	}
	if r.markets[market][symbol] == nil {
		r.markets[market][symbol] = make(map[string]*Channel)
	}
	r.markets[market][symbol][channel] = ch
}

// Get looks up an already-open channel.
func (r *Registry) Get(market, symbol, channel string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols, ok := r.markets[market]
	if !ok {
		return nil, false
	}
	channels, ok := symbols[symbol]
	if !ok {
		return nil, false
	}
	ch, ok := channels[channel]
	return ch, ok
}

// GetOrCreate returns the named channel, opening (and creating the file
// for) it on first use with the given kind. If the channel already exists
// with a different kind, it returns an error rather than silently
// reinterpreting the stored data.
func (r *Registry) GetOrCreate(market, symbol, channel string, kind ChannelKind) (*Channel, error) {
	if ch, ok := r.Get(market, symbol, channel); ok {
		if ch.Kind() != kind {
			return nil, fmt.Errorf("registry: channel %s/%s/%s already exists as %s, not %s", market, symbol, channel, ch.Kind(), kind)
		}
		return ch, nil
	}

	dir := filepath.Join(r.dataDir, market, symbol)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s.store", channel, kind))
	archiveDir := filepath.Join(r.archiveDir, market, symbol, channel)

	ch, err := openChannel(path, kind.String(), archiveDir)
	if err != nil {
		return nil, err
	}

	r.set(market, symbol, channel, ch)
	return ch, nil
}

// Close releases every open channel's file handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, symbols := range r.markets {
		for _, channels := range symbols {
			for _, ch := range channels {
				if err := ch.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

// RotateAll sweeps every registered channel, sealing any whose record
// count has crossed maxRecords into an archive segment. It returns the
// paths of every segment sealed this pass.
func (r *Registry) RotateAll(maxRecords int) ([]string, error) {
	r.mu.Lock()
	channels := make([]*Channel, 0)
	for _, symbols := range r.markets {
		for _, byChannel := range symbols {
			for _, ch := range byChannel {
				channels = append(channels, ch)
			}
		}
	}
	r.mu.Unlock()

	var sealed []string
	for _, ch := range channels {
		rotated, segmentPath, err := ch.Rotate(maxRecords)
		if err != nil {
			return sealed, err
		}
		if rotated {
			sealed = append(sealed, segmentPath)
		}
	}
	return sealed, nil
}
