package pagefile

// Page identifies one physical page within one page file. FileID == -1
// means the page is uninitialized.
type Page struct {
	FileID  int32
	PageNum uint32
}

// Valid reports whether the page refers to a real file.
func (p Page) Valid() bool {
	return p.FileID >= 0
}
