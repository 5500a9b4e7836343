/*
Project: Contract Grading - gradebook imports for contract-graded classes
Target: instructors moving grades out of Canvas (other LMS exports later..)
*/
package contractgrading

/*
TODO: grade history table: keep the previous value of every imported progress record (undo an import)
TODO: Canvas API pull instead of CSV upload (needs an LMS token per instructor)

Imports:
	- per-class default mappings: remember the last mappings used for a class and prefill the preview
	- column-level grading type guessing from the values (all numbers -> points, A-F -> letter)
	- "Points Possible" row: use it to turn raw points into percentages
*/
