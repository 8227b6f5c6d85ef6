// Package binlogfeed adapts a MySQL binlog replication stream to the feed
// contract, turning row events on a watched table into event batches.
package binlogfeed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/sirupsen/logrus"
)

// reader wraps the binlog syncer and persists the replication position so
// a restart resumes where the previous run stopped.
type reader struct {
	syncer       *replication.BinlogSyncer
	streamer     *replication.BinlogStreamer
	position     mysql.Position
	positionFile string
	currentFile  string
	logger       *logrus.Logger
}

func newReader(cfg Config, logger *logrus.Logger) (*reader, error) {
	flavor := cfg.Flavor
	if flavor == "" {
		flavor = "mysql"
	}
	syncerCfg := replication.BinlogSyncerConfig{
		ServerID: cfg.ServerID,
		Flavor:   flavor,
		Host:     cfg.Host,
		Port:     uint16(cfg.Port),
		User:     cfg.User,
		Password: cfg.Password,
	}
	syncer := replication.NewBinlogSyncer(syncerCfg)

	position := loadPosition(cfg.PositionFile, logger)
	streamer, err := syncer.StartSync(position)
	if err != nil {
		syncer.Close()
		return nil, fmt.Errorf("failed to start binlog sync: %w", err)
	}
	logger.Infof("Started binlog sync from position %s:%d", position.Name, position.Pos)

	return &reader{
		syncer:       syncer,
		streamer:     streamer,
		position:     position,
		positionFile: cfg.PositionFile,
		currentFile:  position.Name,
		logger:       logger,
	}, nil
}

// loadPosition reads a "filename:position" pair from the position file.
// Missing or unparseable files start from the current master position.
func loadPosition(path string, logger *logrus.Logger) mysql.Position {
	var position mysql.Position
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return position
	}
	posStr := strings.TrimSpace(string(data))
	lastColon := strings.LastIndexByte(posStr, ':')
	if lastColon > 0 && lastColon < len(posStr)-1 {
		var pos uint32
		if _, err := fmt.Sscanf(posStr[lastColon+1:], "%d", &pos); err == nil {
			position.Name = posStr[:lastColon]
			position.Pos = pos
			logger.Infof("Loaded binlog position from file: %s:%d", position.Name, position.Pos)
			return position
		}
	}
	position.Name = posStr
	logger.Infof("Loaded binlog position from file: %s", position.Name)
	return position
}

// savePosition persists the current position as "filename:position".
func (r *reader) savePosition(name string, pos uint32) error {
	if name == "" {
		name = r.currentFile
	}
	if name == "" || r.positionFile == "" {
		return nil
	}
	posStr := fmt.Sprintf("%s:%d", name, pos)
	if err := os.WriteFile(r.positionFile, []byte(posStr), 0644); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	r.position.Name = name
	r.position.Pos = pos
	r.currentFile = name
	return nil
}

// readEvent reads the next binlog event, tracking rotation and persisting
// the position after each event.
func (r *reader) readEvent(ctx context.Context) (*replication.BinlogEvent, error) {
	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	event, err := r.streamer.GetEvent(readCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get binlog event: %w", err)
	}

	if e, ok := event.Event.(*replication.RotateEvent); ok {
		r.currentFile = string(e.NextLogName)
		if err := r.savePosition(r.currentFile, uint32(e.Position)); err != nil {
			r.logger.Warnf("Failed to save position: %v", err)
		}
	} else if event.Header.LogPos > 0 {
		if err := r.savePosition(r.currentFile, event.Header.LogPos); err != nil {
			r.logger.Warnf("Failed to save position: %v", err)
		}
	}

	return event, nil
}

func (r *reader) close() {
	if r.syncer != nil {
		r.syncer.Close()
	}
}
