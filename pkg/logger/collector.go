package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Publisher forwards flushed warning batches to a sink (e.g. the Redis
// recalibration/ops queue). Matches queue.QueueService.
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval (e.g. 30s)
	CountThreshold int           // max unique warnings before flush
	MessageType    string        // message type for the publisher
	Publisher      Publisher     // optional; nil keeps warnings in-memory only
}

// Warning is one de-duplicated quality warning with occurrence counts.
type Warning struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// WarningCollector aggregates repeated warnings (rejected signals, stale
// calibration) so the warnings endpoint and the ops sink see one entry with
// a count instead of a flood.
type WarningCollector struct {
	config *CollectionConfig
	logMap map[string]*Warning
	mutex  sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWarningCollector(config *CollectionConfig) *WarningCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &WarningCollector{
		config: config,
		logMap: make(map[string]*Warning),
		ctx:    ctx,
		cancel: cancel,
	}

	c.wg.Add(1)
	go c.periodicFlush()

	return c
}

func (c *WarningCollector) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := c.generateKey(level, message, fields, caller)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, exists := c.logMap[key]; exists {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.logMap[key] = &Warning{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.logMap) >= c.config.CountThreshold {
		c.flush()
	}
}

// Snapshot returns the currently buffered warnings, most recent first.
func (c *WarningCollector) Snapshot() []Warning {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make([]Warning, 0, len(c.logMap))
	for _, w := range c.logMap {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

func (c *WarningCollector) generateKey(level, message string, fields map[string]interface{}, caller string) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller}

	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return fmt.Sprintf("%x", hash)
}

func (c *WarningCollector) periodicFlush() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.flush()
			c.mutex.Unlock()
		case <-c.ctx.Done():
			c.mutex.Lock()
			c.flush()
			c.mutex.Unlock()
			return
		}
	}
}

// flush publishes and resets the buffer; callers hold the mutex.
func (c *WarningCollector) flush() {
	if len(c.logMap) == 0 {
		return
	}
	if c.config.Publisher == nil {
		// in-memory only: evict oldest entries once over the threshold
		if len(c.logMap) >= c.config.CountThreshold {
			cutoff := time.Now().Add(-c.config.TimeInterval)
			for k, w := range c.logMap {
				if w.LastSeen.Before(cutoff) {
					delete(c.logMap, k)
				}
			}
		}
		return
	}

	logs := make([]Warning, 0, len(c.logMap))
	for _, entry := range c.logMap {
		logs = append(logs, *entry)
	}
	c.logMap = make(map[string]*Warning)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.config.Publisher.PublishMessage(ctx, c.config.MessageType, logs); err != nil {
			fmt.Printf("failed to publish warning batch: %v\n", err)
		}
	}()
}

func (c *WarningCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
