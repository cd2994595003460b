// Package board provides the domain types shared by every queueboard package.
//
// The board is a fixed grid of 12 rows. Each row has two cabinets (sides),
// and each cabinet has two player positions:
//
//	row | left P1 | left P2 | right P1 | right P2
//
// A Slot is one cell. Its identity is the (row, side, position) triple, but
// all mutations address it by the store-assigned surrogate ID. The ID never
// moves; reordering rewrites the RowIndex that an ID occupies.
//
// This package imports nothing internal. Every other package imports board.
package board
