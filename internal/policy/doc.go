// Package policy defines the validation policy and the classifier that maps
// task references onto validity states.
//
// Classification is a pure function over the action type, the declared
// version, and an immutable policy snapshot, so concurrent repository
// processing shares one Configuration value safely.
package policy
