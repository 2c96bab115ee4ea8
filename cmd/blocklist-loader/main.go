// blocklist-loader seeds the enforcement store from line-delimited
// indicator files, going through the same idempotent union path the
// engine uses, so re-running a feed never rewrites an unchanged store.
package main

import (
	"bufio"
	"flag"
	"os"
	"strings"

	"go.uber.org/zap"

	"dnssentinel/internal/blocklist"
	"dnssentinel/internal/classify"
	"dnssentinel/internal/logging"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "engine data directory holding the blocklist files")
	domainFeed := flag.String("domains", "", "file with one domain per line")
	addrFeed := flag.String("addrs", "", "file with one client address per line")
	flag.Parse()

	log := logging.New("info", "")
	defer log.Sync()

	store := blocklist.NewStore(*dataDir, log)
	if err := store.Load(); err != nil {
		log.Fatalw("load blocklist", "err", err)
	}

	var indicators []classify.Indicator
	if *domainFeed != "" {
		indicators = append(indicators, readFeed(*domainFeed, classify.IndicatorDomain, log)...)
	}
	if *addrFeed != "" {
		indicators = append(indicators, readFeed(*addrFeed, classify.IndicatorAddr, log)...)
	}
	if len(indicators) == 0 {
		log.Warn("no indicators to load")
		return
	}

	before := store.Current().Version()
	if err := store.Add(indicators); err != nil {
		log.Fatalw("blocklist update failed", "err", err)
	}
	if store.Current().Version() == before {
		log.Infow("all indicators already present", "indicators", len(indicators))
		return
	}
	domains, addrs := store.Sizes()
	log.Infow("blocklist updated", "indicators", len(indicators), "domains", domains, "addrs", addrs)
}

func readFeed(path string, typ classify.IndicatorType, log *zap.SugaredLogger) []classify.Indicator {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalw("open feed", "path", path, "err", err)
	}
	defer f.Close()

	var out []classify.Indicator
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, classify.Indicator{Type: typ, Value: line})
	}
	if err := sc.Err(); err != nil {
		log.Fatalw("read feed", "path", path, "err", err)
	}
	return out
}
