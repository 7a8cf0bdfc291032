package tgcore

import "github.com/basket/tgcore/multipart"

// InputFile is a file reference usable in any payload field that accepts
// one (photo, document, media.media, ...). It is an alias for
// multipart.InputFile so payload structs in this package can hold one
// without importing multipart directly.
type InputFile = multipart.InputFile

// FileURL references a file Telegram should fetch itself.
type FileURL = multipart.FileURL

// FileID references a file already known to Telegram by its file_id.
type FileID = multipart.FileID

// FileBytes uploads in-memory content as a new file.
type FileBytes = multipart.FileBytes

// FileReader uploads streamed content as a new file.
type FileReader = multipart.FileReader
