package core

import "sort"

// DetectChanges computes the ordered list of changes that, if applied to
// before, would transform it into after. For every path in after that's
// absent from before, it emits Added; for every path present in both with
// differing metadata (per FileMetadata.Equal), it emits Modified. For every
// path in before that's absent from after, it emits Deleted.
//
// The result is ordered Added, then Modified, then Deleted; within the
// Added and Modified categories, entries are ordered so that a parent
// directory's entry always precedes its children's entries, satisfying the
// archive writer's requirement that a directory be created before anything
// is written beneath it. Deleted entries (including descendants implied by
// an ancestor's deletion) are all reported here; it is the archive writer's
// responsibility to collapse them into minimal whiteout markers.
func DetectChanges(before, after Snapshot) []FileChange {
	var added, modified, deleted []FileChange

	for _, path := range after.sortedPaths() {
		afterEntry := after[path]
		if beforeEntry, ok := before[path]; !ok {
			added = append(added, FileChange{Path: path, Kind: ChangeKindAdded, EntryKind: afterEntry.Kind})
		} else if !beforeEntry.Equal(afterEntry) {
			modified = append(modified, FileChange{Path: path, Kind: ChangeKindModified, EntryKind: afterEntry.Kind})
		}
	}

	var deletedPaths []string
	for path := range before {
		if _, ok := after[path]; !ok {
			deletedPaths = append(deletedPaths, path)
		}
	}
	sort.Slice(deletedPaths, func(i, j int) bool {
		return pathLess(deletedPaths[i], deletedPaths[j])
	})
	for _, path := range deletedPaths {
		deleted = append(deleted, FileChange{Path: path, Kind: ChangeKindDeleted, EntryKind: before[path].Kind})
	}

	result := make([]FileChange, 0, len(added)+len(modified)+len(deleted))
	result = append(result, added...)
	result = append(result, modified...)
	result = append(result, deleted...)
	return result
}

// MinimalDeletions reduces a list of deleted paths (in any order) to the
// minimal set whose removal implies all the others: if both a directory and
// a path beneath it are deleted, only the directory is retained, since
// removing it necessarily removes everything beneath it. The result is
// ordered so that no path in it is an ancestor of a later one as a
// consequence of being skipped; ordering is otherwise parent-before-child.
func MinimalDeletions(changes []FileChange) []FileChange {
	deleted := make([]FileChange, 0, len(changes))
	for _, change := range changes {
		if change.Kind == ChangeKindDeleted {
			deleted = append(deleted, change)
		}
	}
	sort.Slice(deleted, func(i, j int) bool {
		return pathLess(deleted[i].Path, deleted[j].Path)
	})

	result := make([]FileChange, 0, len(deleted))
	for _, change := range deleted {
		covered := false
		for _, kept := range result {
			if kept.EntryKind == EntryKindDirectory && IsAncestor(kept.Path, change.Path) {
				covered = true
				break
			}
		}
		if !covered {
			result = append(result, change)
		}
	}
	return result
}
