//go:build sharedptr_contracts

package sharedptr

// enableContractChecks turns precondition violations (unbalanced
// decrements, illegal memory orders, double release) into panics.
const enableContractChecks = true
