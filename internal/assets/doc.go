// Package assets provides the template resources used to build EPUB
// containers.
//
// Templates are addressed by logical name (see the name constants) through
// the Bundle interface, so builders never touch the filesystem directly and
// tests can substitute a MapBundle. Generated templates contain the literal
// placeholders $TITLE, $TIMESTAMP, $UUID, $AUTHOR and $CONTENT.
package assets
