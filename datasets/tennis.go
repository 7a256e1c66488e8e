package datasets

// PlayTennis returns Quinlan's 14-day weather table. The last column, "Play", is the
// target.
func PlayTennis() *CategoricalTable {
	return &CategoricalTable{Columns: []Categorical{
		{Name: "Outlook", Values: []string{
			"Sunny", "Sunny", "Overcast", "Rain", "Rain", "Rain", "Overcast",
			"Sunny", "Sunny", "Rain", "Sunny", "Overcast", "Overcast", "Rain",
		}},
		{Name: "Temperature", Values: []string{
			"Hot", "Hot", "Hot", "Mild", "Cool", "Cool", "Cool",
			"Mild", "Cool", "Mild", "Mild", "Mild", "Hot", "Mild",
		}},
		{Name: "Humidity", Values: []string{
			"High", "High", "High", "High", "Normal", "Normal", "Normal",
			"High", "Normal", "Normal", "Normal", "High", "Normal", "High",
		}},
		{Name: "Wind", Values: []string{
			"Weak", "Strong", "Weak", "Weak", "Weak", "Strong", "Strong",
			"Weak", "Weak", "Weak", "Strong", "Strong", "Weak", "Strong",
		}},
		{Name: "Play", Values: []string{
			"No", "No", "Yes", "Yes", "Yes", "No", "Yes",
			"No", "Yes", "Yes", "Yes", "Yes", "Yes", "No",
		}},
	}}
}
