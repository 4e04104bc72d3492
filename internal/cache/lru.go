// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package cache

import "time"

// entry is one cached result, linked into the recency list.
// Value is never mutated after the entry is created.
type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	prev      *entry[V]
	next      *entry[V]
}

// recencyList is a doubly linked list with sentinel head and tail.
// Front is most recently used. Callers hold the cache mutex.
type recencyList[V any] struct {
	head *entry[V]
	tail *entry[V]
}

func newRecencyList[V any]() *recencyList[V] {
	l := &recencyList[V]{head: &entry[V]{}, tail: &entry[V]{}}
	l.head.next = l.tail
	l.tail.prev = l.head
	return l
}

func (l *recencyList[V]) pushFront(e *entry[V]) {
	e.prev = l.head
	e.next = l.head.next
	l.head.next.prev = e
	l.head.next = e
}

func (l *recencyList[V]) remove(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

func (l *recencyList[V]) moveToFront(e *entry[V]) {
	if l.head.next == e {
		return
	}
	l.remove(e)
	l.pushFront(e)
}

// back returns the least recently used entry, or nil if empty.
func (l *recencyList[V]) back() *entry[V] {
	if l.tail.prev == l.head {
		return nil
	}
	return l.tail.prev
}

func (l *recencyList[V]) reset() {
	l.head.next = l.tail
	l.tail.prev = l.head
}
