package domain

// MoveElement returns a copy of items with the element at from reinserted at
// to. The target index is clamped into [0, len(items)-1]; an out-of-range
// from returns an unchanged copy. The input slice is never mutated.
func MoveElement[T any](items []T, from, to int) []T {
	out := make([]T, len(items))
	copy(out, items)
	if from < 0 || from >= len(out) {
		return out
	}
	el := out[from]
	out = append(out[:from], out[from+1:]...)
	if to < 0 {
		to = 0
	}
	if to > len(out) {
		to = len(out)
	}
	return append(out[:to:to], append([]T{el}, out[to:]...)...)
}

// InsertAt returns a copy of items with el inserted at the given index,
// clamped into [0, len(items)].
func InsertAt[T any](items []T, index int, el T) []T {
	if index < 0 {
		index = 0
	}
	if index > len(items) {
		index = len(items)
	}
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:index]...)
	out = append(out, el)
	return append(out, items[index:]...)
}

// RemoveAt returns a copy of items without the element at index. An
// out-of-range index returns an unchanged copy.
func RemoveAt[T any](items []T, index int) []T {
	if index < 0 || index >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:index]...)
	return append(out, items[index+1:]...)
}

// ReindexTasks rewrites each task's order field to its array position and
// returns the same slice.
func ReindexTasks(tasks []Task) []Task {
	for i := range tasks {
		tasks[i].Order = i
	}
	return tasks
}

// ReindexLists rewrites each list's order field to its array position and
// returns the same slice.
func ReindexLists(lists []TaskList) []TaskList {
	for i := range lists {
		lists[i].Order = i
	}
	return lists
}
