// Package extract unpacks a downloaded release archive into a destination
// directory, dispatching purely on the filename suffix: .zip archives are
// read entry by entry, .tar.gz archives run through a gunzip reader piped
// into a tar reader. Entry paths are confined to the destination so a
// hostile archive cannot write outside it.
package extract
