package lazylist

import "container/list"

const defaultCacheSize = 1000

type lruCache[K comparable, W any] struct {
	capacity int
	order    *list.List
	entries  map[K]*list.Element
}

type lruEntry[K comparable, W any] struct {
	key    K
	widget W
}

func newLRUCache[K comparable, W any](capacity int) *lruCache[K, W] {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	return &lruCache[K, W]{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[K]*list.Element),
	}
}

func (c *lruCache[K, W]) get(key K) (W, bool) {
	elem, ok := c.entries[key]
	if !ok {
		var zero W
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruEntry[K, W]).widget, true
}

func (c *lruCache[K, W]) put(key K, widget W) {
	if elem, ok := c.entries[key]; ok {
		elem.Value.(*lruEntry[K, W]).widget = widget
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&lruEntry[K, W]{key: key, widget: widget})
	c.entries[key] = elem

	for c.order.Len() > c.capacity {
		last := c.order.Back()
		if last == nil {
			break
		}
		c.order.Remove(last)
		delete(c.entries, last.Value.(*lruEntry[K, W]).key)
	}
}

func (c *lruCache[K, W]) len() int {
	return c.order.Len()
}
