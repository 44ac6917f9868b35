//go:build !sharedptr_opt_enablepadding

package sharedptr

const enablePadding = false

type hazardSlot struct {
	hazardSlotFields
}
