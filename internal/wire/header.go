// Package wire implements the framed command protocol (C1): a
// length-prefixed JSON header optionally followed by a binary body, and
// the request/response header shapes exchanged over it (§6).
package wire

// RequestHeader is the JSON header a peer sends to invoke an action.
type RequestHeader struct {
	Action     string `json:"action"`
	DeviceName string `json:"deviceName,omitempty"`
	TimeIP     string `json:"timeIp,omitempty"`
	FileID     uint32 `json:"fileID,omitempty"`
	FileSize   int64  `json:"fileSize,omitempty"`
	Path       string `json:"path,omitempty"`
	UploadType string `json:"uploadType,omitempty"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
	DataLen    int64  `json:"dataLen"`
	OpID       uint32 `json:"opID,omitempty"`
}

// DataType names the shape of a response body.
type DataType string

const (
	DataTypeText      DataType = "text"
	DataTypeClipImage DataType = "clip-image"
	DataTypeFiles     DataType = "files"
	DataTypeBinary    DataType = "binary"
)

// Status codes (§6).
const (
	CodeSuccess      = 200
	CodeGeneralError = 400
	CodeUnauthorized = 401
)

// ResponseHeader is the JSON header returned for every action.
type ResponseHeader struct {
	Code     int      `json:"code"`
	Msg      string   `json:"msg,omitempty"`
	DataType DataType `json:"dataType,omitempty"`
	DataLen  int64    `json:"dataLen"`
}

// Actions (§4.4, §6).
const (
	ActionPing           = "ping"
	ActionPasteText      = "pasteText"
	ActionPasteFile      = "pasteFile"
	ActionCopy           = "copy"
	ActionDownload       = "download"
	ActionMatch          = "match"
	ActionSyncText       = "syncText"
	ActionSetRelayServer = "setRelayServer"
	ActionEndConnection  = "endConnection"
)

// UploadOperationInfo is the JSON body of a pasteFile/uploadInfo request
// (§6).
type UploadOperationInfo struct {
	FilesSizeInThisOp   int64                     `json:"filesSizeInThisOp"`
	FilesCountInThisOp  int32                     `json:"filesCountInThisOp"`
	UploadPaths         map[string]UploadPathMeta `json:"uploadPaths,omitempty"`
	EmptyDirs           []string                  `json:"emptyDirs,omitempty"`
}

// UploadPathMeta describes one path participating in an upload operation.
type UploadPathMeta struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
}

// ManifestEntry is one element of a copy-response `files` body (§6).
type ManifestEntry struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Type     string `json:"type"` // "file" | "dir"
	SavePath string `json:"savePath"`
}

// MatchResponse is the body the match handler (C8) returns.
type MatchResponse struct {
	DeviceName    string `json:"deviceName"`
	SecretKeyHex  string `json:"secretKeyHex"`
	CACertificate string `json:"caCertificate"`
}
