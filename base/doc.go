/*

Package base provides building blocks shared by the other packages:

* CSV Reading and Writing

* Random Generator

Sub-packages provide binary encoding, JSON decoding and logging.

*/
package base
