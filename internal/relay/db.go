package relay

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LoggedEvent is the durable form of one log record. The row ID doubles as
// the event sequence number, which makes the log append-only by
// construction.
type LoggedEvent struct {
	ID        uint64 `gorm:"primaryKey"`
	Sender    string
	Recipient string
	Payload   []byte
	CreatedAt int64
}

// EventLog is the relay server's persistent store.
type EventLog struct {
	db *gorm.DB
}

// OpenEventLog opens (creating if needed) the sqlite event log at path.
// Pass ":memory:" for an ephemeral log.
func OpenEventLog(path string) (*EventLog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&LoggedEvent{}); err != nil {
		return nil, err
	}
	return &EventLog{db: db}, nil
}

// Append stores one record and returns its sequence number.
func (l *EventLog) Append(sender, recipient common.Address, payload []byte) (uint64, error) {
	record := LoggedEvent{
		Sender:    sender.Hex(),
		Recipient: recipient.Hex(),
		Payload:   payload,
		CreatedAt: time.Now().Unix(),
	}
	if err := l.db.Create(&record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

// Count reports the number of records on the log.
func (l *EventLog) Count() (int64, error) {
	var n int64
	err := l.db.Model(&LoggedEvent{}).Count(&n).Error
	return n, err
}
