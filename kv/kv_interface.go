// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"context"
	"errors"
)

//Naming:
//  tx - Database Transaction
//  txn - Ethereum Transaction (and TxNum - is also number of Ethereum Transaction)
//  RoTx - Read-Only Database Transaction
//  RwTx - Read-Write Database Transaction
//  k - key
//  v - value

// ErrStorageUnavailable marks any failure of the backing store. It is fatal for the
// computation reading through it and never retried by the trie layer.
var ErrStorageUnavailable = errors.New("storage unavailable")

/*
RoDB low-level interface - common abstraction over the in-memory and the bolt backends.
Lifetime: read data valid until end of transaction.
Example:

	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // it's safe to Rollback after `tx.Commit()`

	... application logic using `tx`
*/
type RoDB interface {
	Closer
	BeginRo(ctx context.Context) (Tx, error)

	// View like BeginRo but for short-living transactions. Example:
	//	 if err := db.View(ctx, func(tx kv.Tx) error {
	//	    ... code which uses database in transaction
	//	 }); err != nil {
	//			return err
	//	}
	View(ctx context.Context, f func(tx Tx) error) error
}

type RwDB interface {
	RoDB

	Update(ctx context.Context, f func(tx RwTx) error) error

	// BeginRw - creates transaction. Only one RwTx can be open at a time,
	// a second BeginRw blocks until the first one is committed or rolled back.
	BeginRw(ctx context.Context) (RwTx, error)
}

// Tx is a point-in-time snapshot of all tables.
// Unlike RwTx, a read-only Tx may hand out cursors to many goroutines at once:
// every cursor owns its position and the snapshot itself never changes.
type Tx interface {
	Getter

	// Cursor - creates cursor object on top of given table.
	Cursor(table string) (Cursor, error)

	Count(table string) (uint64, error)
}

// RwTx
//
// WARNING:
//   - RwTx is not threadsafe and may only be used in the goroutine that created it.
type RwTx interface {
	Tx
	Putter

	RwCursor(table string) (RwCursor, error)
	// ClearTable deletes every entry of the table.
	ClearTable(table string) error

	Commit() error // Commit all the operations of a transaction into the database.
}

/*
Cursor - low-level api to navigate through a db table
If methods (like First/Next/Seek) return error, then returned key SHOULD not be used.
Example iterate table:

	c := tx.Cursor(tableName)
	defer c.Close()
	for k, v, err := c.First(); k != nil; k, v, err = c.Next() {
	   if err != nil {
		   return err
	   }
	   ... logic using `k` and `v` (key and value)
	}
*/
type Cursor interface {
	First() ([]byte, []byte, error)               // First - position at first key/data item
	Seek(seek []byte) ([]byte, []byte, error)     // Seek - position at first key greater than or equal to specified key
	SeekExact(key []byte) ([]byte, []byte, error) // SeekExact - position at exact matching key if exists
	Next() ([]byte, []byte, error)                // Next - position at next key/value
	Current() ([]byte, []byte, error)             // Current - return key/data at current cursor position

	Close()
}

type RwCursor interface {
	Cursor

	Put(k, v []byte) error // Put - based on order
	Delete(k []byte) error // Delete - removes the key, cursor position is kept
}

type Getter interface {
	// Has indicates whether a key exists in the database.
	Has(table string, key []byte) (bool, error)

	// GetOne references a readonly section of memory that must not be accessed after txn has terminated
	GetOne(table string, key []byte) (val []byte, err error)

	// ForEach iterates over entries with keys greater or equal to fromPrefix.
	// walker is called for each eligible entry, an error returned by walker stops the iteration.
	ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error
	// ForPrefix iterates over entries which start with the given prefix.
	ForPrefix(table string, prefix []byte, walker func(k, v []byte) error) error

	Rollback() // Rollback - abandon all the operations of the transaction instead of saving them.
}

// Putter wraps the database write operations.
type Putter interface {
	// Put inserts or updates a single entry.
	Put(table string, k, v []byte) error

	// Delete removes a single entry.
	Delete(table string, k []byte) error
}

type Closer interface {
	Close()
}
