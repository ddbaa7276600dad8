package patient

// CannedQuestion is one of the six fixed questions every persona has a
// prepared answer for.
type CannedQuestion struct {
	// Key is the JSON property the oracle fills in.
	Key string
	// Text is the question as stored in Chat.PatientResponses.
	Text string
}

// CannedQuestions are asked of every generated patient, in this order.
var CannedQuestions = []CannedQuestion{
	{Key: "symptoms", Text: "Can you describe your symptoms?"},
	{Key: "duration", Text: "How long have you had these symptoms?"},
	{Key: "allergies_chronic", Text: "Do you have any allergies or chronic conditions?"},
	{Key: "medications", Text: "Are you taking any medications?"},
	{Key: "appearance", Text: "Have you noticed any changes in your appearance, such as rashes, swelling or skin color?"},
	{Key: "palpation", Text: "Does it hurt or feel different when you press on the affected area?"},
}
