package vidchat

import "errors"

// Client construction and lifecycle errors.
var (
	ErrNoDatabase   = errors.New("vidchat: no database configured")
	ErrNoChatModel  = errors.New("vidchat: no chat model configured")
	ErrNoEmbedder   = errors.New("vidchat: no embedding model available")
	ErrClientClosed = errors.New("vidchat: client is closed")
)
