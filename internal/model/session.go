package model

// Session is the durable client-side record of one logical recording. It is
// persisted as a single JSON record and overwritten on every chunk boundary;
// NextChunkIndex only ever increases and is the single source of truth for
// where a resumed recording continues.
type Session struct {
	ID             string `json:"id"`
	NextChunkIndex int    `json:"currentChunk"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// Chunk is one sealed, time-boxed segment of recorded audio. Immutable once
// sealed; indices are zero-based and contiguous within a session.
type Chunk struct {
	SessionID string
	Index     int
	Bytes     []byte
	MimeType  string
}

// SequenceMapping is the permanent sessionId -> documentName assignment.
// Created exactly once per session, first write wins.
type SequenceMapping struct {
	SessionID    string `json:"session_id"`
	DocumentName string `json:"document_name"`
	Ctime        int64  `json:"ctime"`
}
