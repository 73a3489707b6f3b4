/*

Package model provides the deep and wide rating model.

A deep tower of embeddings and continuous features passes through fully connected layers,
and its output is combined with a linear model over wide binary features:

	* Deep inputs: one embedding table per categorical business attribute
	* Wide inputs: category indicators and selected category combinations

*/
package model
