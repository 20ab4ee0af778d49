package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ============================================================================
// Snowflake numbers
// ============================================================================
//
// Transaction and order numbers must be globally unique across instances and
// roughly time ordered so the history index stays append-friendly. Each
// instance runs with its own node id (app.worker_id, 0-1023).
//
//   TXN + yyyyMMdd + snowflake id   transaction numbers
//   ORD + yyyyMMdd + snowflake id   candidate order numbers
//
// ============================================================================

// epoch is 2024-01-01 00:00:00 UTC in milliseconds.
const epoch = int64(1704067200000)

var (
	node *snowflake.Node
	mu   sync.Mutex
)

// Init configures the process wide node. It may be called again in tests.
func Init(workerID int64) error {
	mu.Lock()
	defer mu.Unlock()

	snowflake.Epoch = epoch
	n, err := snowflake.NewNode(workerID)
	if err != nil {
		return fmt.Errorf("init snowflake node %d: %w", workerID, err)
	}
	node = n
	return nil
}

func NextID() int64 {
	mu.Lock()
	n := node
	mu.Unlock()

	if n == nil {
		if err := Init(1); err != nil {
			panic(err)
		}
		return NextID()
	}
	return n.Generate().Int64()
}

func GenerateTransactionNo() string {
	return fmt.Sprintf("TXN%s%d", time.Now().UTC().Format("20060102"), NextID())
}

func GenerateOrderNo() string {
	return fmt.Sprintf("ORD%s%d", time.Now().UTC().Format("20060102"), NextID())
}
