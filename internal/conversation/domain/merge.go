package domain

import (
	"sort"
	"strings"
)

// Merge combine the cached version of a conversation with an incoming one (network or stream).
//
// id, type, creator and createdAt are immutable after creation and come from existing.
// Title keeps existing unless it is blank. Participants are unioned by id with existing first.
// updatedAt never decreases.
func Merge(existing, incoming Conversation) Conversation {
	title := existing.Title
	if strings.TrimSpace(title) == "" {
		title = incoming.Title
	}

	updatedAt := existing.UpdatedAt
	if incoming.UpdatedAt.After(updatedAt) {
		updatedAt = incoming.UpdatedAt
	}

	return Conversation{
		ID:           existing.ID,
		Title:        title,
		Type:         existing.Type,
		Creator:      existing.Creator,
		Participants: UniqueUsers(existing.Participants, incoming.Participants),
		Messages:     MergeMessages(existing.Messages, incoming.Messages),
		CreatedAt:    existing.CreatedAt,
		UpdatedAt:    updatedAt,
	}
}

// MergeMessages union two message sets, newest first.
//
// Every incoming message replaces all entries it is the same as (see Message.SameAs), so an
// optimistic entry and the server echo of it collapse into one. The surviving entry keeps the
// local id it already had in the cache.
func MergeMessages(existing, incoming []Message) []Message {
	result := make([]Message, 0, len(existing)+len(incoming))
	result = append(result, existing...)

	for _, m := range incoming {
		localID := ""
		kept := result[:0:0]
		for _, cur := range result {
			if cur.SameAs(m) {
				if localID == "" {
					localID = cur.LocalID
				}
				continue
			}
			kept = append(kept, cur)
		}
		if localID != "" {
			m.LocalID = localID
		}
		result = append(kept, m)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
