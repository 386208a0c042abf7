package archive

// BuildZip packages the files of imagesDir into a plain ZIP archive at
// outputFile. Entry names carry no directory prefix for a flat working set.
// The title, when non-empty, is stored as the archive comment.
func BuildZip(imagesDir, outputFile, title string) error {
	return WriteDir(imagesDir, outputFile, Options{Comment: title})
}
