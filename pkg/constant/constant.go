package constant

// Conversation kinds
const (
	ConvKindDirect   = 1 // Direct message between two users
	ConvKindRoom     = 2 // Multi-user room
	ConvKindAssigned = 3 // Administratively-assigned conversation
)

// Message media kinds
const (
	MediaKindText  = 1
	MediaKindImage = 2
	MediaKindVideo = 3
	MediaKindAudio = 4
	MediaKindFile  = 5
)

// MediaKindToName converts a media kind to a short label for notification text
func MediaKindToName(mediaKind int32) string {
	switch mediaKind {
	case MediaKindImage:
		return "image"
	case MediaKindVideo:
		return "video"
	case MediaKindAudio:
		return "audio"
	case MediaKindFile:
		return "file"
	default:
		return "message"
	}
}

// Membership change kinds
const (
	MemberAdded   = 1
	MemberRemoved = 2
)

// Platform Ids
const (
	PlatformIdUnknown = 0
	PlatformIdIOS     = 1
	PlatformIdAndroid = 2
	PlatformIdWindows = 3
	PlatformIdMacOS   = 4
	PlatformIdWeb     = 5
)

// ProvisionalIdPrefix marks client-generated message ids that have not yet
// been confirmed by the server.
const ProvisionalIdPrefix = "tmp_"

// Conversation Id prefixes
const (
	DirectConversationPrefix   = "si_"
	RoomConversationPrefix     = "sg_"
	AssignedConversationPrefix = "sa_"
)
