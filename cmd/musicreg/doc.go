// Package main (cmd/musicreg) is the command-line client of the music
// copyright registry.
//
// Commands:
//
//	fees                                   show registration and access fees
//	list [--registrant 0x...]              list records, newest first
//	upload --file song.mp3                 upload audio, print its content id
//	register --title T --author A [--license L] (--file F | --cid C)
//	view --id N [--yes]                    show a certificate, paying if required
//
// Writes need --private-key (or MUSICREG_PRIVATE_KEY). view asks for
// confirmation of the exact fee on the terminal unless --yes is given.
package main
