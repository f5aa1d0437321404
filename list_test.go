package objfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedList_AppendPushFrontInsertAfter(t *testing.T) {
	l := newOrderedList[int]()
	l.append(2)
	l.append(3)
	l.pushFront(1)

	n := l.first()
	n = l.insertAfter(n, 99)
	_ = n

	var got []int
	for cur := l.first(); cur != nil; cur = cur.next {
		got = append(got, cur.val)
	}
	assert.Equal(t, []int{1, 99, 2, 3}, got)
	assert.Equal(t, 4, l.len())
}

func TestOrderedList_RemoveMatchAndPop(t *testing.T) {
	l := newOrderedList[string]()
	l.append("a")
	l.append("b")
	l.append("c")

	v, ok := l.removeMatch(func(s string) bool { return s == "b" })
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 2, l.len())

	_, ok = l.removeMatch(func(s string) bool { return s == "z" })
	assert.False(t, ok)

	first, ok := l.pop()
	assert.True(t, ok)
	assert.Equal(t, "a", first)

	second, ok := l.pop()
	assert.True(t, ok)
	assert.Equal(t, "c", second)

	_, ok = l.pop()
	assert.False(t, ok)
	assert.Equal(t, 0, l.len())
}
