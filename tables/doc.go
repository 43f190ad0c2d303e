// Package tables fills label/value forms laid out as Word tables.
//
// Business-response templates collect supplier identity in two table shapes:
//
//   - label/value rows, where a label cell such as 供应商名称 is followed by
//     the cell that receives the value;
//   - multi-column data tables, where a header row of labels sits above an
//     empty row of value cells.
//
// # Detection
//
// A [Detector] scores every non-empty cell as a potential label. The cell
// text is stripped of colons, brackets, asterisks and blanks, then compared
// with the label variants of every configured field:
//
//   - exact equality scores 1.0;
//   - a label contained in the cell scores 0.9, labels ending the cell text
//     win over longer ones elsewhere in it;
//   - a hit of the field's regular expression scores 0.7.
//
// Cells scoring below the configured minimum (0.6 by default) are not
// labels. The target of a label is the cell to its right. When there is no
// such cell, or it is itself a label, the blank cell directly below is used
// instead. A cell is the target of at most one label.
//
// # Filling
//
// A [Filler] runs the detector over every table of a block sequence,
// including nested tables, evaluates each pair with the context filter and
// writes the value into the first paragraph of the target cell through the
// run-level replacer. The paragraphs of every detected pair are marked as
// handled so that the paragraph walker does not edit them a second time.
package tables
