package llm

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Role identifies who produced a message.
type Role string

func (r Role) String() string {
	return string(r)
}

// Message is a single text message in a model context. Attachment content is
// inlined as text upstream, so the model surface is text-only.
type Message struct {
	Role Role
	Name string
	Text string
}

// Chunk is one streamed fragment of a generated reply.
type Chunk struct {
	Role Role
	Text string
}
