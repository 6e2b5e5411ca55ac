package common

import "fmt"

// RID locates a tuple: the page holding it and the slot inside that page.
type RID struct {
	PageId  PageId
	SlotNum int
}

func (rid RID) String() string {
	return fmt.Sprintf("[%v, slot num %d]", rid.PageId, rid.SlotNum)
}
