package pos

// SelectStudentReq opens a checkout session for a student at the counter.
type SelectStudentReq struct {
	StudentID string `json:"student_id" validate:"required"`
}

// AddBookReq adds a scanned ISBN to the active session.
type AddBookReq struct {
	ISBN string `json:"isbn" validate:"required"`
}

// ReturnReq lists the transaction items handed back at the counter.
type ReturnReq struct {
	ItemIDs []int64 `json:"item_ids" validate:"required,min=1,dive,gt=0"`
}
