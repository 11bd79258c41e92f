package appconfig

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/csmu-cenr/go-azure/azcore"
)

// syncTokenPolicy keeps the client session-consistent across the
// service's replicas: Sync-Token response headers are collected, the
// highest sequence number per token ID wins, and the set is replayed
// on every request.
type syncTokenPolicy struct {
	mu     sync.Mutex
	tokens map[string]syncToken
}

type syncToken struct {
	value string
	seqNo int64
}

func newSyncTokenPolicy() *syncTokenPolicy {
	return &syncTokenPolicy{tokens: map[string]syncToken{}}
}

func (p *syncTokenPolicy) Do(req *azcore.Request) (*http.Response, error) {
	if header := p.headerValue(); header != "" {
		req.Raw().Header.Set("Sync-Token", header)
	}
	resp, err := req.Next()
	if err != nil {
		return nil, err
	}
	for _, raw := range resp.Header.Values("Sync-Token") {
		p.absorb(raw)
	}
	return resp, nil
}

// absorb parses a Sync-Token header value: comma-separated tokens of
// the form <id>=<value>;sn=<sequence>.
func (p *syncTokenPolicy) absorb(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range strings.Split(raw, ",") {
		value, seqNo := "", int64(-1)
		id := ""
		for _, part := range strings.Split(strings.TrimSpace(item), ";") {
			name, val, found := strings.Cut(part, "=")
			if !found {
				continue
			}
			if name == "sn" {
				if n, err := strconv.ParseInt(val, 10, 64); err == nil {
					seqNo = n
				}
			} else {
				id, value = name, val
			}
		}
		if id == "" {
			continue
		}
		if existing, ok := p.tokens[id]; !ok || seqNo > existing.seqNo {
			p.tokens[id] = syncToken{value: value, seqNo: seqNo}
		}
	}
}

func (p *syncTokenPolicy) headerValue() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tokens) == 0 {
		return ""
	}
	ids := make([]string, 0, len(p.tokens))
	for id := range p.tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id+"="+p.tokens[id].value)
	}
	return strings.Join(parts, ",")
}
