//go:build !sharedptr_contracts

package sharedptr

const enableContractChecks = false
