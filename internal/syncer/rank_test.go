package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/chatsync/internal/entity"
)

func conv(id string, activity int64) *entity.Conversation {
	return &entity.Conversation{ConversationId: id, LastActivity: activity}
}

func ids(convs []*entity.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ConversationId
	}
	return out
}

func TestRank_FavoritesFirst(t *testing.T) {
	convs := []*entity.Conversation{
		conv("c_old_fave", 100),
		conv("c_new", 900),
		conv("c_mid", 500),
	}
	favorites := map[string]struct{}{"c_old_fave": {}}

	ranked := Rank(convs, favorites)
	assert.Equal(t, []string{"c_old_fave", "c_new", "c_mid"}, ids(ranked),
		"favorites precede non-favorites regardless of activity")
}

func TestRank_RecencyWithinPartition(t *testing.T) {
	convs := []*entity.Conversation{
		conv("a", 100),
		conv("b", 300),
		conv("c", 200),
	}
	ranked := Rank(convs, nil)
	assert.Equal(t, []string{"b", "c", "a"}, ids(ranked))
}

func TestRank_PeerIdMatchesFavorite(t *testing.T) {
	direct := conv("si_alice_bob", 100)
	direct.PeerUserId = "bob"
	other := conv("si_alice_carol", 900)

	ranked := Rank([]*entity.Conversation{other, direct}, map[string]struct{}{"bob": {}})
	assert.Equal(t, []string{"si_alice_bob", "si_alice_carol"}, ids(ranked))
}

func TestRank_ExternallyFlaggedFavorite(t *testing.T) {
	flagged := conv("c_flagged", 100)
	flagged.IsFavorite = true

	ranked := Rank([]*entity.Conversation{conv("c_busy", 900), flagged}, nil)
	assert.Equal(t, "c_flagged", ranked[0].ConversationId)
}

func TestRank_Deterministic(t *testing.T) {
	convs := []*entity.Conversation{
		conv("b", 500),
		conv("a", 500), // tie on activity, broken by id
		conv("c", 700),
	}
	first := Rank(convs, nil)
	second := Rank(convs, nil)
	require.Equal(t, ids(first), ids(second))
	assert.Equal(t, []string{"c", "a", "b"}, ids(first))
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	convs := []*entity.Conversation{conv("b", 100), conv("a", 900)}
	Rank(convs, nil)
	assert.Equal(t, "b", convs[0].ConversationId)
	assert.Equal(t, "a", convs[1].ConversationId)
}
