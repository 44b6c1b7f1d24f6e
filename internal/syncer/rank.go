package syncer

import (
	"sort"

	"github.com/mbeoliero/chatsync/internal/entity"
)

// Rank orders conversations for display: favorites first, each partition
// descending by last activity, ties broken by conversation id. A
// conversation is a favorite when its id or its peer user id appears in
// favoriteIds, or when it is externally flagged. Total, deterministic
// function of its inputs; the input slice is not mutated.
func Rank(convs []*entity.Conversation, favoriteIds map[string]struct{}) []*entity.Conversation {
	favorites := make([]*entity.Conversation, 0, len(favoriteIds))
	rest := make([]*entity.Conversation, 0, len(convs))

	for _, conv := range convs {
		if isFavorite(conv, favoriteIds) {
			favorites = append(favorites, conv)
		} else {
			rest = append(rest, conv)
		}
	}

	sortByActivity(favorites)
	sortByActivity(rest)

	return append(favorites, rest...)
}

func isFavorite(conv *entity.Conversation, favoriteIds map[string]struct{}) bool {
	if conv.IsFavorite {
		return true
	}
	if _, ok := favoriteIds[conv.ConversationId]; ok {
		return true
	}
	if conv.PeerUserId != "" {
		if _, ok := favoriteIds[conv.PeerUserId]; ok {
			return true
		}
	}
	return false
}

func sortByActivity(convs []*entity.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].LastActivity != convs[j].LastActivity {
			return convs[i].LastActivity > convs[j].LastActivity
		}
		return convs[i].ConversationId < convs[j].ConversationId
	})
}
